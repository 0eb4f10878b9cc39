package ops

import (
	"context"
	"sync"

	"github.com/studio1767/filesync/internal/fingerprint"
)

// This operator will generate the fingerprint for each candidate and insert it
// into the EntryInfo object. Up to 'workers' files are hashed at once, so
// entries can leave in a different order than they arrived.
func NewHashGenerator(ctx context.Context, in <-chan *EntryInfo, root string, workers int) <-chan *EntryInfo {
	if workers < 1 {
		workers = 1
	}

	out := make(chan *EntryInfo, 10)
	hg := hashGenerator{
		ctx:  ctx,
		in:   in,
		out:  out,
		root: root,
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			hg.run()
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

type hashGenerator struct {
	ctx  context.Context
	in   <-chan *EntryInfo
	out  chan<- *EntryInfo
	root string
}

func (hg *hashGenerator) run() {
	for {
		// check the channels
		select {
		case <-hg.ctx.Done():
			return
		case info, ok := <-hg.in:
			if !ok {
				return
			}
			hg.process(info)
		}
	}
}

func (hg *hashGenerator) process(info *EntryInfo) {
	// only candidates get hashed
	if info.Status != StatusCandidate {
		send(hg.ctx, hg.out, info)
		return
	}

	record, err := fingerprint.File(hg.root, info.RelPath)
	if err != nil {
		info.fail(err)
	} else {
		info.Record = record
		info.RawSize = record.Size
		info.ModTime = record.ModTime
	}

	// pass it on
	send(hg.ctx, hg.out, info)
}
