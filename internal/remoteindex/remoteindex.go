// Package remoteindex rebuilds a best-effort view of what already exists
// in a remote store so paths without a manifest entry are not uploaded a
// second time.
package remoteindex

import (
	"context"
	"log/slog"

	"github.com/studio1767/filesync/internal/remote"
)

type key struct {
	name string
	size int64
}

// Entry is one indexed remote object.
type Entry struct {
	Filename string
	Size     int64
	ID       string
	object   remote.Object
}

// Index maps (filename, size) to a single remote object id.
type Index struct {
	entries map[key]Entry
	objects int
}

func Empty() *Index {
	return &Index{entries: make(map[key]Entry)}
}

// Build pages through the store's listing. On a listing failure the
// error is logged to log and an empty index is returned.
func Build(ctx context.Context, lister remote.Lister, log *slog.Logger) *Index {
	if log == nil {
		log = slog.Default()
	}
	idx := Empty()

	err := lister.List(ctx, func(objects []remote.Object) error {
		for _, obj := range objects {
			idx.Add(obj)
		}
		return ctx.Err()
	})
	if err != nil {
		log.Warn("remote listing failed, continuing without remote index", "error", err)
		return Empty()
	}

	log.Debug("remote index built", "objects", idx.objects, "keys", idx.Len())
	return idx
}

// Add indexes obj. Objects of unknown size are counted but never indexed.
// On a key collision the most recently created object wins and equal
// creation times go to the greatest id.
func (idx *Index) Add(obj remote.Object) {
	idx.objects++
	if obj.Size < 0 || obj.Name == "" || obj.ID == "" {
		return
	}

	k := key{name: obj.Name, size: obj.Size}
	if prev, ok := idx.entries[k]; ok && !newer(obj, prev.object) {
		return
	}
	idx.entries[k] = Entry{Filename: obj.Name, Size: obj.Size, ID: obj.ID, object: obj}
}

func newer(a, b remote.Object) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Lookup finds the object matching both name and size exactly.
func (idx *Index) Lookup(name string, size int64) (Entry, bool) {
	if idx == nil {
		return Entry{}, false
	}
	e, ok := idx.entries[key{name: name, size: size}]
	return e, ok
}

func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}
