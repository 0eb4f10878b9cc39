package ops

import (
	"context"

	"github.com/studio1767/filesync/internal/fingerprint"
)

// EntryStatus records how far an entry got through the enumeration
// pipeline.
type EntryStatus int

const (
	StatusCandidate EntryStatus = iota
	StatusTooLarge
	StatusFailed
)

func (s EntryStatus) String() string {
	switch s {
	case StatusCandidate:
		return "candidate"
	case StatusTooLarge:
		return "too large"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// EntryInfo is the state of one file system object as it moves between
// operators. Each operator decides from Status whether its work applies.
type EntryInfo struct {
	Status  EntryStatus
	RelPath string
	RawSize int64
	ModTime float64

	// set by the hash generator
	Record fingerprint.FileRecord

	Err error
}

func (info *EntryInfo) fail(err error) {
	info.Status = StatusFailed
	info.Err = err
}

// send forwards info unless the context is cancelled first.
func send(ctx context.Context, out chan<- *EntryInfo, info *EntryInfo) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- info:
		return true
	}
}
