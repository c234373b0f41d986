package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is matched by every InputError
	ErrInvalidInput = errors.New("invalid input")
	// ErrInference is matched by every InferenceFailure
	ErrInference = errors.New("inference failed")
)

// InputError reports a request that cannot be processed, e.g. a missing
// question or an empty document list. Message is safe to return to clients.
type InputError struct {
	Message string
}

func NewInputError(format string, args ...any) *InputError {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

func (e *InputError) Error() string {
	return e.Message
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// InferenceFailure reports a failed model call.
// Index is the offending item, -1 when the whole batch failed.
// Raw holds the raw remote payload when there is one.
type InferenceFailure struct {
	Index int
	Raw   string
	Err   error
}

func (e *InferenceFailure) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("inference failed for item %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceFailure) Unwrap() error {
	return e.Err
}

func (e *InferenceFailure) Is(target error) bool {
	return target == ErrInference
}

// ExtractionFailure reports the pipeline stage an error happened in
type ExtractionFailure struct {
	Stage string
	Err   error
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("extraction failed at %s: %v", e.Stage, e.Err)
}

func (e *ExtractionFailure) Unwrap() error {
	return e.Err
}
