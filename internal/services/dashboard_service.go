package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"wastewise/internal/cache"
	"wastewise/internal/core"
	wlog "wastewise/internal/log"
	"wastewise/internal/ports"
)

// Dashboard is the home view of one user: the aggregated summary plus the
// latest entries.
type Dashboard struct {
	Summary core.Summary
	Recent  []core.WasteLogEntry
}

// DashboardService computes dashboards and caches them per user.
type DashboardService struct {
	logs  ports.LogReader
	cache cache.Cache[Dashboard]

	// generations counts invalidations per user. A dashboard is cached only
	// if no invalidation happened while it was being computed.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewDashboardService creates the service. A nil cache disables caching.
func NewDashboardService(logs ports.LogReader, c cache.Cache[Dashboard]) *DashboardService {
	return &DashboardService{
		logs:        logs,
		cache:       c,
		generations: make(map[string]uint64),
	}
}

func (s *DashboardService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[userID]
}

// storeIfCurrent caches d unless userID was invalidated after gen was read.
func (s *DashboardService) storeIfCurrent(userID string, gen uint64, d Dashboard) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[userID] != gen {
		return false
	}
	s.cache.Set(summaryKey(userID), cloneDashboard(d))
	return true
}

func summaryKey(userID string) string {
	return userID + "|summary"
}

// Summary returns the user's dashboard, from cache when fresh.
func (s *DashboardService) Summary(ctx context.Context, userID string) (Dashboard, error) {
	if strings.TrimSpace(userID) == "" {
		return Dashboard{}, &ValidationError{Field: "user", Err: core.ErrEmptyUserID}
	}

	if s.cache != nil {
		if d, ok := s.cache.Get(summaryKey(userID)); ok {
			slog.DebugContext(ctx, "Summary cache hit", wlog.FieldUserID, userID)
			return cloneDashboard(d), nil
		}
	}

	gen := s.generation(userID)
	entries, err := s.logs.ListEntries(ctx, userID, ports.LogFilter{})
	if err != nil {
		return Dashboard{}, fmt.Errorf("load entries for summary: %w", err)
	}

	summary, err := core.Summarize(entries)
	if err != nil {
		return Dashboard{}, fmt.Errorf("summarize waste log: %w", err)
	}

	recent, err := s.logs.RecentEntries(ctx, userID, RecentLimit)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load recent entries: %w", err)
	}

	d := Dashboard{Summary: summary, Recent: recent}
	if s.cache != nil {
		if s.storeIfCurrent(userID, gen, d) {
			slog.DebugContext(ctx, "Summary cached",
				wlog.FieldUserID, userID,
				wlog.FieldOperation, wlog.OpSummarize,
				"entries", len(entries),
				"total_kg", summary.Total)
		} else {
			slog.DebugContext(ctx, "Summary not cached, log changed during load",
				wlog.FieldUserID, userID,
				wlog.FieldOperation, wlog.OpSummarize)
		}
	}
	return d, nil
}

// InvalidateUser implements Invalidator.
func (s *DashboardService) InvalidateUser(userID string) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[userID]++
	s.cache.DeletePrefix(userID + "|")
}

func cloneDashboard(d Dashboard) Dashboard {
	out := Dashboard{
		Summary: core.Summary{
			Total:      d.Summary.Total,
			MostCommon: d.Summary.MostCommon,
		},
	}
	out.Summary.Daily = append(make([]core.DailySummary, 0, len(d.Summary.Daily)), d.Summary.Daily...)
	out.Summary.ByCategory = append(make([]core.CategorySummary, 0, len(d.Summary.ByCategory)), d.Summary.ByCategory...)
	out.Recent = append(make([]core.WasteLogEntry, 0, len(d.Recent)), d.Recent...)
	return out
}
