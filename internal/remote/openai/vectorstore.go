package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/studio1767/filesync/internal/remote"
)

const (
	vectorStoreFilesPath = "/vector_stores/{vector_store_id}/files"
	vectorStoreFilePath  = "/vector_stores/{vector_store_id}/files/{file_id}"

	// files attached to vector stores are uploaded with this purpose
	assistantsPurpose = "assistants"

	DefaultPollInterval = time.Second
	DefaultPollTimeout  = 10 * time.Minute
)

// ErrIngestTimeout is wrapped in the remote.Error returned when ingestion
// is still running after the poll timeout.
var ErrIngestTimeout = errors.New("ingestion did not finish in time")

// VectorStore uploads files and attaches them to one vector store, which
// chunks and embeds them. Upload returns once ingestion has finished.
type VectorStore struct {
	client       *Client
	id           string
	pollInterval time.Duration
	pollTimeout  time.Duration
}

func NewVectorStore(client *Client, id string) *VectorStore {
	return &VectorStore{
		client:       client,
		id:           id,
		pollInterval: DefaultPollInterval,
		pollTimeout:  DefaultPollTimeout,
	}
}

// SetPollInterval sets how often ingestion status is checked.
func (s *VectorStore) SetPollInterval(d time.Duration) *VectorStore {
	s.pollInterval = d
	return s
}

// SetPollTimeout bounds how long Upload waits for ingestion to finish.
func (s *VectorStore) SetPollTimeout(d time.Duration) *VectorStore {
	s.pollTimeout = d
	return s
}

type vectorStoreFile struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

func (s *VectorStore) Upload(ctx context.Context, path, name string) (remote.Object, error) {
	f, err := s.client.uploadFile(ctx, path, name, assistantsPurpose, true)
	if err != nil {
		return remote.Object{}, err
	}

	vsf, err := s.attach(ctx, f.ID, name)
	if err == nil {
		vsf, err = s.poll(ctx, vsf, name)
	}
	if err != nil {
		// don't leave the uploaded file behind
		if derr := s.client.deleteFile(context.WithoutCancel(ctx), f.ID); derr != nil {
			slog.Warn("failed to remove file after vector store error", "file", f.ID, "error", derr)
		}
		return remote.Object{}, err
	}

	obj := f.toObject()
	obj.ID = vsf.ID
	return obj, nil
}

func (s *VectorStore) attach(ctx context.Context, fileID, name string) (*vectorStoreFile, error) {
	var out vectorStoreFile
	resp, err := s.client.client.R().
		SetContext(ctx).
		SetPathParam("vector_store_id", s.id).
		SetBody(map[string]string{"file_id": fileID}).
		SetSuccessResult(&out).
		Post(vectorStoreFilesPath)

	if err := handleAPIError(resp, err, "attach", name, true); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = fileID
	}
	return &out, nil
}

func (s *VectorStore) poll(ctx context.Context, vsf *vectorStoreFile, name string) (*vectorStoreFile, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(s.pollTimeout)
	defer timeout.Stop()

	for {
		switch vsf.Status {
		case "completed":
			return vsf, nil
		case "failed":
			reason := "ingestion failed"
			if vsf.LastError != nil {
				reason = fmt.Sprintf("%s: %s", vsf.LastError.Code, vsf.LastError.Message)
				if vsf.LastError.Code == "unsupported_file" || vsf.LastError.Code == "invalid_file" {
					return nil, &remote.RejectedError{Name: name, Reason: reason}
				}
			}
			return nil, &remote.Error{Op: "ingest", Err: errors.New(reason)}
		case "cancelled":
			return nil, &remote.Error{Op: "ingest", Err: errors.New("ingestion cancelled")}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout.C:
			return nil, &remote.Error{Op: "ingest", Err: fmt.Errorf("%w after %s", ErrIngestTimeout, s.pollTimeout)}
		case <-ticker.C:
		}

		var out vectorStoreFile
		resp, err := s.client.client.R().
			SetContext(ctx).
			SetPathParam("vector_store_id", s.id).
			SetPathParam("file_id", vsf.ID).
			SetSuccessResult(&out).
			Get(vectorStoreFilePath)
		if err := handleAPIError(resp, err, "ingest", name, false); err != nil {
			return nil, err
		}
		vsf = &out
	}
}

// Delete detaches the file from the vector store and then removes the
// file itself. It only reports ErrNotFound when neither existed.
func (s *VectorStore) Delete(ctx context.Context, id string) error {
	var out deleted
	resp, err := s.client.client.R().
		SetContext(ctx).
		SetPathParam("vector_store_id", s.id).
		SetPathParam("file_id", id).
		SetSuccessResult(&out).
		Delete(vectorStoreFilePath)
	detachErr := handleAPIError(resp, err, "detach", id, false)
	if detachErr != nil && !errors.Is(detachErr, remote.ErrNotFound) {
		return detachErr
	}

	deleteErr := s.client.deleteFile(ctx, id)
	if errors.Is(deleteErr, remote.ErrNotFound) && detachErr == nil {
		return nil
	}
	return deleteErr
}

var _ remote.Store = (*VectorStore)(nil)
