package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEntry marks a log entry that violates the aggregator's
	// preconditions (negative quantity, unknown category).
	ErrInvalidEntry = errors.New("invalid waste log entry")

	// ErrInvalidChallengeDefinition marks a challenge whose definition cannot
	// produce a finite progress percentage.
	ErrInvalidChallengeDefinition = errors.New("invalid challenge definition")
)

// InvalidEntryError identifies the offending entry.
type InvalidEntryError struct {
	EntryID string
	Reason  string
}

func (e *InvalidEntryError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidEntry, e.EntryID, e.Reason)
}

func (e *InvalidEntryError) Unwrap() error { return ErrInvalidEntry }

// InvalidChallengeError identifies the offending challenge definition.
type InvalidChallengeError struct {
	ChallengeID string
	Reason      string
}

func (e *InvalidChallengeError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidChallengeDefinition, e.ChallengeID, e.Reason)
}

func (e *InvalidChallengeError) Unwrap() error { return ErrInvalidChallengeDefinition }
