package ialib

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound is returned when a control operation targets an
	// unknown task id. No state is mutated.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskActive is returned when an operation requires the task to
	// not be downloading (e.g. deleting its record).
	ErrTaskActive = errors.New("task is currently downloading")

	// ErrInvalidTransition is returned when a control operation is not
	// allowed from the task's current state.
	ErrInvalidTransition = errors.New("operation not allowed in current state")

	// ErrConflict is returned when a control operation raced another
	// in-flight transition and lost; the caller should re-check state.
	ErrConflict = errors.New("task transition conflict")

	// ErrRangeNotSupported is returned when the server answers a
	// nonzero-offset range request with a full-content response.
	// Restarting from zero would lose resume progress, so the task fails.
	ErrRangeNotSupported = errors.New("server does not support byte ranges")

	// ErrSchedulerClosed is returned by control operations after Close.
	ErrSchedulerClosed = errors.New("scheduler is closed")

	// ErrEmptyURL is returned by Enqueue when the task has no URL.
	ErrEmptyURL = errors.New("task url is empty")
)

// TransientError marks a transport failure that may succeed on retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %s: %s", e.Op, e.Err.Error())
}

func (e *TransientError) Unwrap() error { return e.Err }

// IntegrityError reports a size or digest mismatch on a finished
// transfer. It is never retried automatically.
type IntegrityError struct {
	Reason   string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: %s: expected %s, got %s", e.Reason, e.Expected, e.Actual)
}

// StorageError reports a local persistence or file-write failure. It is
// fatal to the affected task only, never to the scheduler.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %s", e.Op, e.Err.Error())
}

func (e *StorageError) Unwrap() error { return e.Err }

// HTTPStatusError reports an unexpected response status.
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected http status %d", e.Code)
}
