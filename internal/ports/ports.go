package ports

import (
	"context"
	"errors"

	"wastewise/internal/core"
)

var (
	ErrEntryNotFound        = errors.New("waste log entry not found")
	ErrChallengeNotFound    = errors.New("challenge not found")
	ErrAlreadyParticipating = errors.New("already participating in challenge")
	ErrNotParticipating     = errors.New("not participating in challenge")
)

// LogFilter narrows a log listing. Zero dates leave that side of the range
// open and a zero Limit returns every match.
type LogFilter struct {
	From  core.Date
	To    core.Date
	Limit int
}

// Match reports whether d falls inside the filter's date range.
func (f LogFilter) Match(d core.Date) bool {
	if !f.From.IsZero() && d.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && d.After(f.To) {
		return false
	}
	return true
}

// Ports for the persistence collaborators. Every read is scoped by an
// explicit user identity; implementations return fresh slices.
type (
	LogWriter interface {
		AppendEntry(ctx context.Context, e core.WasteLogEntry) error
	}

	LogReader interface {
		// ListEntries returns the user's entries ordered by date ascending.
		ListEntries(ctx context.Context, userID string, f LogFilter) ([]core.WasteLogEntry, error)
		// RecentEntries returns at most limit entries, newest date first.
		RecentEntries(ctx context.Context, userID string, limit int) ([]core.WasteLogEntry, error)
	}

	// ChallengeReader exposes the externally administered challenge catalogue.
	ChallengeReader interface {
		// ListChallenges returns every challenge ordered by start date descending.
		ListChallenges(ctx context.Context) ([]core.Challenge, error)
		GetChallenge(ctx context.Context, id string) (core.Challenge, error)
	}

	ParticipationStore interface {
		ListParticipations(ctx context.Context, userID string) ([]core.Participation, error)
		Join(ctx context.Context, p core.Participation) error
		Leave(ctx context.Context, challengeID, userID string) error
	}

	// LogExporter appends an entry to an external spreadsheet.
	LogExporter interface {
		ExportEntry(ctx context.Context, e core.WasteLogEntry) (rowRef string, err error)
	}

	// ChallengeSource fetches the externally administered catalogue.
	ChallengeSource interface {
		FetchChallenges(ctx context.Context) ([]core.Challenge, error)
	}

	// Store is the full persistence surface used by the API server.
	Store interface {
		LogWriter
		LogReader
		ChallengeReader
		ParticipationStore
	}
)
