package core

import (
	"fmt"
	"sort"
)

// TrendWindow is the number of most recent distinct dates kept in a daily trend.
const TrendWindow = 7

// DailySummary is the total quantity logged on one calendar date.
type DailySummary struct {
	Date          Date    `json:"date"`
	TotalQuantity float64 `json:"total_quantity"`
}

// CategorySummary is the total quantity logged for one category.
type CategorySummary struct {
	Category      Category `json:"category"`
	TotalQuantity float64  `json:"total_quantity"`
}

// Summary is the aggregated view of a single user's log.
type Summary struct {
	Daily      []DailySummary    `json:"daily"`
	ByCategory []CategorySummary `json:"by_category"`
	Total      float64           `json:"total_quantity"`
	// MostCommon is the zero Category when the log is empty.
	MostCommon Category `json:"most_common_category,omitempty"`
}

// HasMostCommon reports whether a most-common category exists.
func (s Summary) HasMostCommon() bool {
	return s.MostCommon != ""
}

// Summarize aggregates entries into a daily trend limited to the last
// TrendWindow distinct dates, per-category totals in first-seen order and a
// grand total over every entry.
//
// Entries are not modified. An entry with a negative quantity or unknown
// category is rejected with an *InvalidEntryError.
func Summarize(entries []WasteLogEntry) (Summary, error) {
	s := Summary{
		Daily:      []DailySummary{},
		ByCategory: []CategorySummary{},
	}

	byDate := make(map[string]int)
	byCategory := make(map[Category]int)
	for _, e := range entries {
		if err := checkAggregatable(e); err != nil {
			return Summary{}, err
		}

		key := e.Date.String()
		if i, ok := byDate[key]; ok {
			s.Daily[i].TotalQuantity += e.Quantity
		} else {
			byDate[key] = len(s.Daily)
			s.Daily = append(s.Daily, DailySummary{Date: e.Date, TotalQuantity: e.Quantity})
		}

		if i, ok := byCategory[e.Category]; ok {
			s.ByCategory[i].TotalQuantity += e.Quantity
		} else {
			byCategory[e.Category] = len(s.ByCategory)
			s.ByCategory = append(s.ByCategory, CategorySummary{Category: e.Category, TotalQuantity: e.Quantity})
		}

		s.Total += e.Quantity
	}

	sort.Slice(s.Daily, func(i, j int) bool {
		return s.Daily[i].Date.Before(s.Daily[j].Date)
	})
	if len(s.Daily) > TrendWindow {
		s.Daily = s.Daily[len(s.Daily)-TrendWindow:]
	}

	best := -1.0
	for _, c := range s.ByCategory {
		// strict comparison keeps the first-seen category on ties
		if c.TotalQuantity > best {
			best = c.TotalQuantity
			s.MostCommon = c.Category
		}
	}

	return s, nil
}

func checkAggregatable(e WasteLogEntry) error {
	if !validQuantity(e.Quantity) {
		return &InvalidEntryError{EntryID: e.ID, Reason: fmt.Sprintf("quantity %v is not a non-negative number", e.Quantity)}
	}
	if !e.Category.Valid() {
		return &InvalidEntryError{EntryID: e.ID, Reason: fmt.Sprintf("unknown category %q", e.Category)}
	}
	return nil
}
