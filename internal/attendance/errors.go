package attendance

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNoActiveSession     = errors.New("no active attendance session for course")
	ErrWrongCode           = errors.New("attendance code does not match")
	ErrWindowNotYetOpen    = errors.New("attendance window is not open yet")
	ErrWindowAlreadyClosed = errors.New("attendance window has already closed")
	ErrInvalidTimeRange    = errors.New("invalid attendance time range")
	ErrInvalidTimeFormat   = errors.New("invalid time format, expected HH:MM")
	ErrInvalidStatus       = errors.New("invalid attendance status")
	ErrInvalidRequest      = errors.New("invalid attendance request")
	ErrForbidden           = errors.New("actor is not allowed to perform this operation")
	ErrStorageUnavailable  = errors.New("attendance storage unavailable")

	// ErrNotFound is returned by Store implementations when a row is missing.
	ErrNotFound = errors.New("not found")
)

// WindowClosedError reports a submission outside the window bounds. It matches
// ErrWindowNotYetOpen or ErrWindowAlreadyClosed depending on Phase.
type WindowClosedError struct {
	Phase Phase
	Start TimeOfDay
	End   TimeOfDay
	At    TimeOfDay
}

func (e *WindowClosedError) Error() string {
	if e.Phase == PhasePending {
		return fmt.Sprintf("attendance window opens at %s (now %s)", e.Start, e.At)
	}
	return fmt.Sprintf("attendance window closed at %s (now %s)", e.End, e.At)
}

func (e *WindowClosedError) Is(target error) bool {
	switch target {
	case ErrWindowNotYetOpen:
		return e.Phase == PhasePending
	case ErrWindowAlreadyClosed:
		return e.Phase == PhaseClosed
	}
	return false
}

// StorageError wraps a failure of the underlying Store. Nothing was written.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorageUnavailable, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorageUnavailable }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
