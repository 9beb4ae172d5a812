package stats

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("player not found")
	ErrTimeout           = errors.New("request timed out")
	ErrNetwork           = errors.New("network error")
	ErrMalformedResponse = errors.New("malformed response")
)

// Error is returned by every fetch. It matches its Kind with errors.Is.
type Error struct {
	Kind     error
	Op       string
	Username string
	Err      error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Username, e.Kind)
	}
	return fmt.Sprintf("%s %q: %v: %v", e.Op, e.Username, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Transient reports whether err is worth retrying on the next cycle.
func Transient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrNetwork) || errors.Is(err, ErrMalformedResponse)
}
