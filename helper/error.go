package helper

import (
	"errors"
	"fmt"
)

// Error wraps an error with the trace of operations it passed through.
type Error struct {
	Original error
	Trace    string
}

// NewError wraps err with the given operation name. Wrapping an *Error
// prepends the operation to the existing trace instead of nesting.
func NewError(trace string, err error) error {
	if err == nil {
		err = errors.New("unknown error")
	}

	if existing, ok := err.(*Error); ok {
		return &Error{
			Original: existing.Original,
			Trace:    trace + " -> " + existing.Trace,
		}
	}

	return &Error{
		Original: err,
		Trace:    trace,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Trace, e.Original)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Original
}
