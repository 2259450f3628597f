package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidTimeFormat   = errors.New("invalid time format")
	ErrInvalidTrimRange    = errors.New("invalid trim range")
	ErrAbortedByUser       = errors.New("aborted by user")
	ErrExternalToolFailure = errors.New("external tool failure")
	ErrExtractionError     = errors.New("extraction error")
	ErrTrimFailed          = errors.New("trim failed")
	ErrReconciliationMiss  = errors.New("no downloaded file found")
	ErrUnknown             = errors.New("unknown error")
)

// ErrorKind classifies a job failure for the queue and its clients
type ErrorKind string

const (
	KindAbortedByUser       ErrorKind = "AbortedByUser"
	KindExternalToolFailure ErrorKind = "ExternalToolFailure"
	KindExtractionError     ErrorKind = "ExtractionError"
	KindTrimFailed          ErrorKind = "TrimFailed"
	KindUnknownError        ErrorKind = "UnknownError"
)

// JobError is the classified error a download job reports when it ends
type JobError struct {
	Kind ErrorKind
	Err  error
}

func (e *JobError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// ClassifyError maps an arbitrary job error onto the failure taxonomy
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAbortedByUser), errors.Is(err, context.Canceled):
		return KindAbortedByUser
	case errors.Is(err, ErrExternalToolFailure):
		return KindExternalToolFailure
	case errors.Is(err, ErrExtractionError):
		return KindExtractionError
	case errors.Is(err, ErrTrimFailed):
		return KindTrimFailed
	default:
		return KindUnknownError
	}
}

// NewJobError wraps err with its classification. An existing JobError is
// returned unchanged.
func NewJobError(err error) *JobError {
	if err == nil {
		return nil
	}
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr
	}
	kind := ClassifyError(err)
	if kind == KindUnknownError && !errors.Is(err, ErrUnknown) {
		err = fmt.Errorf("%w: %w", ErrUnknown, err)
	}
	return &JobError{Kind: kind, Err: err}
}
