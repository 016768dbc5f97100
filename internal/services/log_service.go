package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"wastewise/internal/core"
	wlog "wastewise/internal/log"
	"wastewise/internal/ports"
)

// RecentLimit is how many entries the home view lists.
const RecentLimit = 10

// LogStore is the persistence a LogService needs.
type LogStore interface {
	ports.LogWriter
	ports.LogReader
}

// Publisher announces new entries to the sync worker.
type Publisher interface {
	PublishLogSync(ctx context.Context, entryID, userID string) error
}

// Invalidator drops derived views of a user's log.
type Invalidator interface {
	InvalidateUser(userID string)
}

// LogInput is a raw entry as submitted by a client. Quantity accepts a
// comma or dot decimal separator; an empty Date means today.
type LogInput struct {
	Date     string
	Category string
	ItemName string
	Quantity string
}

// LogService records waste log entries and serves them back per user.
type LogService struct {
	store       LogStore
	publisher   Publisher
	invalidator Invalidator
	loc         *time.Location
	now         func() time.Time
	newID       func() string
}

// NewLogService wires a LogService. publisher and invalidator may be nil.
func NewLogService(store LogStore, publisher Publisher, invalidator Invalidator, loc *time.Location) *LogService {
	if loc == nil {
		loc = time.UTC
	}
	return &LogService{
		store:       store,
		publisher:   publisher,
		invalidator: invalidator,
		loc:         loc,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// CreateEntry validates input, stores it under a new id and notifies the
// sync worker. Publishing failures are logged, not returned: the entry is
// already durable and the worker's pending sweep picks it up later.
func (s *LogService) CreateEntry(ctx context.Context, userID string, in LogInput) (core.WasteLogEntry, error) {
	entry, err := s.buildEntry(userID, in)
	if err != nil {
		return core.WasteLogEntry{}, err
	}

	if err := s.store.AppendEntry(ctx, entry); err != nil {
		return core.WasteLogEntry{}, fmt.Errorf("save waste log entry: %w", err)
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateUser(userID)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishLogSync(ctx, entry.ID, userID); err != nil {
			slog.WarnContext(ctx, "Failed to publish sync message",
				wlog.FieldEntryID, entry.ID,
				wlog.FieldUserID, userID,
				wlog.FieldError, err)
		}
	}

	wlog.NewStructuredLogger(wlog.FromContext(ctx)).LogEntryCreated(ctx,
		entry.ID, userID, entry.Category.String(), entry.ItemName, entry.Quantity, entry.Date.String())

	return entry, nil
}

func (s *LogService) buildEntry(userID string, in LogInput) (core.WasteLogEntry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.WasteLogEntry{}, &ValidationError{Field: "user", Err: core.ErrEmptyUserID}
	}

	date := core.DateOf(s.now().In(s.loc))
	if strings.TrimSpace(in.Date) != "" {
		d, err := core.ParseDate(in.Date)
		if err != nil {
			return core.WasteLogEntry{}, &ValidationError{Field: "date", Err: err}
		}
		date = d
	}

	category, err := core.ParseCategory(in.Category)
	if err != nil {
		return core.WasteLogEntry{}, &ValidationError{Field: "category", Err: err}
	}

	quantity, err := core.ParseQuantity(in.Quantity)
	if err != nil {
		return core.WasteLogEntry{}, &ValidationError{Field: "quantity", Err: err}
	}

	entry := core.WasteLogEntry{
		ID:       s.newID(),
		UserID:   userID,
		Date:     date,
		Category: category,
		ItemName: strings.TrimSpace(in.ItemName),
		Quantity: quantity,
	}
	if err := entry.Validate(); err != nil {
		return core.WasteLogEntry{}, &ValidationError{Field: "entry", Err: err}
	}
	return entry, nil
}

// ListEntries returns the user's entries inside f, oldest first.
func (s *LogService) ListEntries(ctx context.Context, userID string, f ports.LogFilter) ([]core.WasteLogEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &ValidationError{Field: "user", Err: core.ErrEmptyUserID}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return nil, &ValidationError{Field: "range", Err: fmt.Errorf("%w: from %s is after to %s", core.ErrInvalidDate, f.From, f.To)}
	}
	entries, err := s.store.ListEntries(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list waste log entries: %w", err)
	}
	return entries, nil
}

// Recent returns the user's RecentLimit newest entries.
func (s *LogService) Recent(ctx context.Context, userID string) ([]core.WasteLogEntry, error) {
	entries, err := s.store.RecentEntries(ctx, userID, RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent entries: %w", err)
	}
	return entries, nil
}
