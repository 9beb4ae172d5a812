package store

import (
	"errors"
	"fmt"
)

var ErrInvalidSchedule = errors.New("invalid schedule")

// CorruptStateError reports a persisted document that could not be decoded.
// A store that failed to load with it refuses all writes.
type CorruptStateError struct {
	Document string
	Err      error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt %s document: %v", e.Document, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }
