package remote

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the remote object does not exist.
var ErrNotFound = errors.New("remote object not found")

// Error is a failed remote call. Network failures and server errors both
// end up here; the next run retries whatever failed.
type Error struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s failed (status %d): %s", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote %s failed: %s", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RejectedError is returned when the store refuses the content itself,
// for example an unsupported file type. Retrying the same bytes will not
// help.
type RejectedError struct {
	Name   string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("remote rejected %s: %s", e.Name, e.Reason)
}
