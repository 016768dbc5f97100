package services

import (
	"errors"
	"fmt"
)

// ErrChallengeNotActive is returned when joining or leaving a challenge
// outside its active window.
var ErrChallengeNotActive = errors.New("challenge is not active")

// ValidationError reports a rejected input field. It unwraps to the
// underlying core sentinel so callers can still use errors.Is.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

