package openai

import (
	"context"
	"errors"

	"github.com/studio1767/filesync/internal/remote"
)

var errNoID = errors.New("upload succeeded but no file id returned")

// FilesStore uploads into the files endpoint tagged with remote.Purpose.
type FilesStore struct {
	client *Client
}

func NewFilesStore(client *Client) *FilesStore {
	return &FilesStore{client: client}
}

func (s *FilesStore) Upload(ctx context.Context, path, name string) (remote.Object, error) {
	f, err := s.client.uploadFile(ctx, path, name, remote.Purpose, false)
	if err != nil {
		return remote.Object{}, err
	}
	return f.toObject(), nil
}

func (s *FilesStore) Delete(ctx context.Context, id string) error {
	return s.client.deleteFile(ctx, id)
}

func (s *FilesStore) List(ctx context.Context, fn func([]remote.Object) error) error {
	return s.client.listFiles(ctx, remote.Purpose, fn)
}

var _ remote.Store = (*FilesStore)(nil)
var _ remote.Lister = (*FilesStore)(nil)
