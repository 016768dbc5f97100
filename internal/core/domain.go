package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	Recyclable  Category = "Recyclable"
	Compostable Category = "Compostable"
	Landfill    Category = "Landfill"
)

// DateLayout is the canonical text form of a Date.
const DateLayout = "2006-01-02"

const maxItemNameLength = 200

type (
	// Category is the waste taxonomy shared by log entries and challenges.
	Category string

	// Date is a calendar date with no time-of-day or zone semantics.
	// The embedded time is always midnight UTC.
	Date struct {
		time.Time
	}

	WasteLogEntry struct {
		ID       string
		UserID   string
		Date     Date
		Category Category
		ItemName string
		Quantity float64 // kilograms
	}

	Challenge struct {
		ID              string
		Title           string
		Description     string
		Category        Category
		StartDate       Date
		EndDate         Date
		TargetReduction float64 // kilograms
	}

	// Participation records that a user joined a challenge. It carries no
	// progress: progress is always recomputed from the log.
	Participation struct {
		ChallengeID string
		UserID      string
		JoinedAt    time.Time
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrEmptyItemName   = errors.New("empty item name")
	ErrEmptyUserID     = errors.New("empty user id")
)

// Categories returns the enumeration in display order.
func Categories() []Category {
	return []Category{Recyclable, Compostable, Landfill}
}

// ParseCategory matches s case-insensitively against the known categories.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories() {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

func (c Category) Valid() bool {
	switch c {
	case Recyclable, Compostable, Landfill:
		return true
	default:
		return false
	}
}

func (c Category) String() string {
	return string(c)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as observed in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// String returns the canonical YYYY-MM-DD form; the zero date renders as "".
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Compare returns -1, 0 or +1 comparing calendar dates only.
func (d Date) Compare(other Date) int {
	return strings.Compare(d.String(), other.String())
}

func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }
func (d Date) After(other Date) bool  { return d.Compare(other) > 0 }

// Within reports whether start <= d <= end.
func (d Date) Within(start, end Date) bool {
	return d.Compare(start) >= 0 && d.Compare(end) <= 0
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON overrides the promoted time.Time encoding so dates travel as
// "YYYY-MM-DD" strings.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	return d.UnmarshalText([]byte(s))
}

func validQuantity(q float64) bool {
	return q >= 0 && !math.IsNaN(q) && !math.IsInf(q, 0)
}

func (e WasteLogEntry) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return ErrEmptyUserID
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, e.Category)
	}
	if strings.TrimSpace(e.ItemName) == "" {
		return ErrEmptyItemName
	}
	if len(e.ItemName) > maxItemNameLength {
		return fmt.Errorf("item name too long (max %d characters)", maxItemNameLength)
	}
	if !validQuantity(e.Quantity) {
		return ErrInvalidQuantity
	}
	return nil
}

// Validate checks the definition a challenge must satisfy before progress
// can be computed for it.
func (c Challenge) Validate() error {
	var problems []string
	if !c.Category.Valid() {
		problems = append(problems, fmt.Sprintf("unknown category %q", c.Category))
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		problems = append(problems, "start and end dates are required")
	} else if c.StartDate.After(c.EndDate) {
		problems = append(problems, fmt.Sprintf("start date %s is after end date %s", c.StartDate, c.EndDate))
	}
	if !(c.TargetReduction > 0) || math.IsInf(c.TargetReduction, 0) {
		problems = append(problems, fmt.Sprintf("target reduction must be positive, got %v", c.TargetReduction))
	}
	if len(problems) > 0 {
		return &InvalidChallengeError{ChallengeID: c.ID, Reason: strings.Join(problems, "; ")}
	}
	return nil
}
