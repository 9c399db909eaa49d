package worker

import (
	"context"
	"errors"
)

// Task is a unit of periodic maintenance.
type Task interface {
	// Name identifies the task in logs. Names must be unique per worker.
	Name() string

	// Run performs one pass. Returning a PermanentError stops the task for
	// the lifetime of the worker.
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to Task.
type TaskFunc struct {
	TaskName string
	Fn       func(ctx context.Context) error
}

// Name implements Task.
func (f TaskFunc) Name() string { return f.TaskName }

// Run implements Task.
func (f TaskFunc) Run(ctx context.Context) error { return f.Fn(ctx) }

// PermanentError wraps an error to indicate the task should not run again.
type PermanentError struct {
	Err error
}

// Error implements the error interface.
func (e *PermanentError) Error() string {
	return e.Err.Error()
}

// Unwrap allows errors.Is and errors.As to work with PermanentError.
func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError creates a new PermanentError that wraps the given error.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent checks if an error is a PermanentError.
// Returns true if the error (or any error it wraps) is a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
