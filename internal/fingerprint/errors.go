package fingerprint

import (
	"fmt"
)

// FileReadError is returned when a file could not be read while
// fingerprinting. It only ever affects the one file.
type FileReadError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("failed to %s %s: %s", e.Op, e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error {
	return e.Err
}
