package ops

import (
	"context"
)

// NewSizeLimiter marks candidates larger than maxBytes as too large. They
// stay in the stream so they can be reported.
func NewSizeLimiter(ctx context.Context, in <-chan *EntryInfo, maxBytes int64) <-chan *EntryInfo {
	out := make(chan *EntryInfo, 10)
	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case info, ok := <-in:
				if !ok {
					return
				}
				if info.Status == StatusCandidate && info.RawSize > maxBytes {
					info.Status = StatusTooLarge
				}
				if !send(ctx, out, info) {
					return
				}
			}
		}
	}()

	return out
}
