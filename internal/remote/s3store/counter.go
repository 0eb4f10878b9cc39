package s3store

import (
	"io"
	"sync/atomic"
)

// ReadCounter counts the bytes pulled through it. The total can be read
// while the upload is still in flight.
type ReadCounter struct {
	in    io.Reader
	reads atomic.Int64
	bytes atomic.Int64
}

func NewReadCounter(in io.Reader) *ReadCounter {
	return &ReadCounter{in: in}
}

func (rc *ReadCounter) Read(p []byte) (int, error) {
	size, err := rc.in.Read(p)

	rc.reads.Add(1)
	rc.bytes.Add(int64(size))

	return size, err
}

func (rc *ReadCounter) TotalReads() int {
	return int(rc.reads.Load())
}

func (rc *ReadCounter) TotalBytes() int64 {
	return rc.bytes.Load()
}
