package manifest

import (
	"errors"
	"fmt"
)

var ErrManifestLocked = errors.New("manifest is locked by another run")

// ManifestCorruptError is returned by Load alongside an empty, usable
// manifest when the stored document could not be parsed.
type ManifestCorruptError struct {
	Path   string
	Backup string
	Err    error
}

func (e *ManifestCorruptError) Error() string {
	if e.Backup == "" {
		return fmt.Sprintf("manifest %s is corrupt: %s", e.Path, e.Err)
	}
	return fmt.Sprintf("manifest %s is corrupt (saved copy in %s): %s", e.Path, e.Backup, e.Err)
}

func (e *ManifestCorruptError) Unwrap() error {
	return e.Err
}
