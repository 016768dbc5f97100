package core

import (
	"fmt"
	"math"
	"time"
)

// MaxPercent caps reported challenge progress.
const MaxPercent = 100.0

// ChallengeProgress is a user's progress toward one challenge, recomputed
// from the live log on every call.
type ChallengeProgress struct {
	ChallengeID string  `json:"challenge_id"`
	Achieved    float64 `json:"achieved_kg"`
	Percent     float64 `json:"percent"`
}

// ProgressResult pairs a challenge with its progress or the reason it could
// not be evaluated.
type ProgressResult struct {
	Challenge Challenge
	Progress  ChallengeProgress
	Err       error
}

// Status is the phase of a challenge relative to a reference date.
type Status int

const (
	StatusUpcoming Status = iota
	StatusActive
	StatusEnded
)

func (s Status) String() string {
	switch s {
	case StatusUpcoming:
		return "upcoming"
	case StatusActive:
		return "active"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for _, candidate := range []Status{StatusUpcoming, StatusActive, StatusEnded} {
		if string(b) == candidate.String() {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown challenge status %q", b)
}

// AllowsParticipationChange reports whether users may join or leave a
// challenge in this phase.
func (s Status) AllowsParticipationChange() bool {
	return s == StatusActive
}

// StatusAt classifies ch by the calendar date of now.
func StatusAt(ch Challenge, now time.Time) Status {
	return StatusOn(ch, DateOf(now))
}

// StatusOn classifies ch against an already resolved calendar date.
func StatusOn(ch Challenge, today Date) Status {
	switch {
	case today.Before(ch.StartDate):
		return StatusUpcoming
	case today.After(ch.EndDate):
		return StatusEnded
	default:
		return StatusActive
	}
}

// EvaluateProgress sums the entries matching the challenge category inside
// its inclusive date window and expresses the sum as a percentage of the
// target, capped at MaxPercent.
func EvaluateProgress(ch Challenge, entries []WasteLogEntry) (ChallengeProgress, error) {
	if err := ch.Validate(); err != nil {
		return ChallengeProgress{}, err
	}

	var achieved float64
	for _, e := range entries {
		if e.Category != ch.Category {
			continue
		}
		if !e.Date.Within(ch.StartDate, ch.EndDate) {
			continue
		}
		if !validQuantity(e.Quantity) {
			continue
		}
		achieved += e.Quantity
	}

	percent := achieved / ch.TargetReduction * 100
	percent = math.Max(0, math.Min(MaxPercent, percent))

	return ChallengeProgress{
		ChallengeID: ch.ID,
		Achieved:    achieved,
		Percent:     percent,
	}, nil
}

// Evaluate wraps EvaluateProgress into a ProgressResult, keeping a bad
// definition's error in the result instead of returning it.
func Evaluate(ch Challenge, entries []WasteLogEntry) ProgressResult {
	p, err := EvaluateProgress(ch, entries)
	return ProgressResult{Challenge: ch, Progress: p, Err: err}
}

// EvaluateAll evaluates every challenge independently. A bad definition is
// reported in its own result and does not affect the others.
func EvaluateAll(challenges []Challenge, entries []WasteLogEntry) []ProgressResult {
	results := make([]ProgressResult, len(challenges))
	for i, ch := range challenges {
		results[i] = Evaluate(ch, entries)
	}
	return results
}
