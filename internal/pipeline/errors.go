package pipeline

import (
	"errors"
	"fmt"

	"call-compliance-go/internal/diarizer"
	"call-compliance-go/internal/store"
	"call-compliance-go/internal/transcriber"
)

// ErrNotFound mirrors the store sentinel so callers can test one error.
var ErrNotFound = store.ErrNotFound

// ValidationError rejects a recording before any stage beyond task/call
// creation has persisted state. Never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation failed: " + e.Reason }

// StageError is a fatal stage failure, recorded on the task before it
// propagates.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// retryable reports whether an error is a transient collaborator outage.
// Everything else is permanent for this run.
func retryable(err error) bool {
	return errors.Is(err, transcriber.ErrUnavailable) || errors.Is(err, diarizer.ErrUnavailable)
}
