package remote

import (
	"context"
	"strings"
	"time"
)

// Purpose is the classifier attached to every object uploaded to the
// files store.
const Purpose = "user_data"

// Object is a remote store's view of one uploaded file.
type Object struct {
	ID        string
	Name      string
	Size      int64 // -1 when the store cannot report the original size
	CreatedAt time.Time
}

// Store is a remote object store that files are synced into.
type Store interface {
	// Upload sends the local file at path and returns the object once the
	// store has acknowledged it.
	Upload(ctx context.Context, path, name string) (Object, error)

	// Delete removes an object. Deleting an object that does not exist
	// returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// Lister is implemented by stores that can enumerate their objects.
type Lister interface {
	// List calls fn once per page of objects until the listing is
	// exhausted or fn returns an error.
	List(ctx context.Context, fn func([]Object) error) error
}

// DestinationKind selects where uploads go for a whole run.
type DestinationKind int

const (
	FilesAPI DestinationKind = iota
	VectorStore
)

// Destination is resolved once at startup and never re-checked per file.
type Destination struct {
	Kind          DestinationKind
	VectorStoreID string
}

func Files() Destination {
	return Destination{Kind: FilesAPI}
}

func VectorStoreDestination(id string) Destination {
	return Destination{Kind: VectorStore, VectorStoreID: id}
}

// String is the form recorded against manifest entries.
func (d Destination) String() string {
	if d.Kind == VectorStore {
		return "vector_store:" + d.VectorStoreID
	}
	return "files"
}

// ParseDestination is the inverse of Destination.String.
func ParseDestination(s string) (Destination, bool) {
	if s == "files" {
		return Files(), true
	}
	if id, ok := strings.CutPrefix(s, "vector_store:"); ok && id != "" {
		return VectorStoreDestination(id), true
	}
	return Destination{}, false
}
