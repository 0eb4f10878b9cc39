package openai_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/require"
	"testing"

	"github.com/studio1767/filesync/internal/remote"
	"github.com/studio1767/filesync/internal/remote/openai"
)

type fakeFile struct {
	ID       string `json:"id"`
	Object   string `json:"object"`
	Bytes    int64  `json:"bytes"`
	Created  int64  `json:"created_at"`
	Filename string `json:"filename"`
	Purpose  string `json:"purpose"`
}

// fakeAPI is a minimal stand in for the files and vector store endpoints.
type fakeAPI struct {
	mu       sync.Mutex
	files    map[string]fakeFile
	order    []string
	attached map[string]int // file id -> polls until completed
	reject   map[string]bool
	stuck    map[string]bool // filenames whose ingestion never finishes
	fail500  atomic.Int32
	pageSize int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		files:    make(map[string]fakeFile),
		attached: make(map[string]int),
		reject:   make(map[string]bool),
		stuck:    make(map[string]bool),
		pageSize: 2,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func apiError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"message": msg, "type": "invalid_request_error"}})
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer sk-test" {
		apiError(w, http.StatusUnauthorized, "bad key")
		return
	}
	if f.fail500.Load() > 0 {
		f.fail500.Add(-1)
		apiError(w, http.StatusInternalServerError, "boom")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/files":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			apiError(w, http.StatusBadRequest, err.Error())
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			apiError(w, http.StatusBadRequest, err.Error())
			return
		}
		data, _ := io.ReadAll(file)
		if f.reject[header.Filename] {
			apiError(w, http.StatusBadRequest, "unsupported file type")
			return
		}
		id := fmt.Sprintf("file-%d", len(f.order)+1)
		ff := fakeFile{ID: id, Object: "file", Bytes: int64(len(data)), Created: int64(1700000000 + len(f.order)), Filename: header.Filename, Purpose: r.FormValue("purpose")}
		f.files[id] = ff
		f.order = append(f.order, id)
		writeJSON(w, http.StatusOK, ff)

	case r.Method == http.MethodGet && r.URL.Path == "/files":
		// newest first, paged with 'after'
		var all []fakeFile
		for i := len(f.order) - 1; i >= 0; i-- {
			ff, ok := f.files[f.order[i]]
			if ok && ff.Purpose == r.URL.Query().Get("purpose") {
				all = append(all, ff)
			}
		}
		start := 0
		if after := r.URL.Query().Get("after"); after != "" {
			for i, ff := range all {
				if ff.ID == after {
					start = i + 1
				}
			}
		}
		end := min(start+f.pageSize, len(all))
		writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": all[start:end], "has_more": end < len(all)})

	case r.Method == http.MethodDelete && len(parts) == 2 && parts[0] == "files":
		if _, ok := f.files[parts[1]]; !ok {
			apiError(w, http.StatusNotFound, "no such file")
			return
		}
		delete(f.files, parts[1])
		writeJSON(w, http.StatusOK, map[string]any{"id": parts[1], "deleted": true})

	case r.Method == http.MethodPost && len(parts) == 3 && parts[0] == "vector_stores":
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		ff, ok := f.files[body["file_id"]]
		if !ok {
			apiError(w, http.StatusNotFound, "no such file")
			return
		}
		if strings.HasSuffix(ff.Filename, ".exe") {
			writeJSON(w, http.StatusOK, map[string]any{"id": ff.ID, "status": "failed", "last_error": map[string]string{"code": "unsupported_file", "message": "nope"}})
			return
		}
		f.attached[ff.ID] = 2
		if f.stuck[ff.Filename] {
			f.attached[ff.ID] = 1 << 30
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": ff.ID, "status": "in_progress"})

	case r.Method == http.MethodGet && len(parts) == 4 && parts[0] == "vector_stores":
		polls, ok := f.attached[parts[3]]
		if !ok {
			apiError(w, http.StatusNotFound, "not attached")
			return
		}
		status := "in_progress"
		if polls <= 1 {
			status = "completed"
		}
		f.attached[parts[3]] = polls - 1
		writeJSON(w, http.StatusOK, map[string]any{"id": parts[3], "status": status})

	case r.Method == http.MethodDelete && len(parts) == 4 && parts[0] == "vector_stores":
		if _, ok := f.attached[parts[3]]; !ok {
			apiError(w, http.StatusNotFound, "not attached")
			return
		}
		delete(f.attached, parts[3])
		writeJSON(w, http.StatusOK, map[string]any{"id": parts[3], "deleted": true})

	default:
		apiError(w, http.StatusNotFound, "unknown route "+r.Method+" "+r.URL.Path)
	}
}

func setup(t *testing.T) (*fakeAPI, *openai.Client) {
	t.Helper()

	api := newFakeAPI()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	client, err := openai.NewClient(srv.URL, "sk-test")
	require.NoError(t, err)
	client.SetRetry(2, time.Millisecond, 5*time.Millisecond)

	return api, client
}

func tempFile(t *testing.T, name, data string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestMissingKey(t *testing.T) {
	_, err := openai.NewClient("", "")
	require.ErrorIs(t, err, openai.ErrNoAPIKey)
}

func TestFilesUploadListDelete(t *testing.T) {
	api, client := setup(t)
	store := openai.NewFilesStore(client)
	ctx := context.Background()

	var ids []string
	for i, name := range []string{"a.txt", "b.md", "c.csv"} {
		obj, err := store.Upload(ctx, tempFile(t, name, strings.Repeat("x", i+1)), name)
		require.NoError(t, err)
		require.Equal(t, name, obj.Name)
		require.Equal(t, int64(i+1), obj.Size)
		ids = append(ids, obj.ID)
	}
	require.Equal(t, remote.Purpose, api.files[ids[0]].Purpose)

	// three objects over two pages
	var listed []remote.Object
	pages := 0
	err := store.List(ctx, func(objs []remote.Object) error {
		pages++
		listed = append(listed, objs...)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, pages)
	require.Len(t, listed, 3)
	require.Equal(t, "c.csv", listed[0].Name)

	require.NoError(t, store.Delete(ctx, ids[1]))
	err = store.Delete(ctx, ids[1])
	require.ErrorIs(t, err, remote.ErrNotFound)
}

func TestFilesBadRequestIsNotRejection(t *testing.T) {
	api, client := setup(t)
	api.reject["weird.bin"] = true

	_, err := openai.NewFilesStore(client).Upload(context.Background(), tempFile(t, "weird.bin", "x"), "weird.bin")
	require.Error(t, err)

	// a 400 from the files endpoint is retried on the next run
	var rejected *remote.RejectedError
	require.False(t, errors.As(err, &rejected))

	var rerr *remote.Error
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, http.StatusBadRequest, rerr.StatusCode)
}

func TestVectorStoreUploadRejected(t *testing.T) {
	api, client := setup(t)
	api.reject["weird.bin"] = true

	store := openai.NewVectorStore(client, "vs_1").SetPollInterval(time.Millisecond)
	_, err := store.Upload(context.Background(), tempFile(t, "weird.bin", "x"), "weird.bin")

	var rejected *remote.RejectedError
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, "weird.bin", rejected.Name)
}

func TestServerErrorsAreRetried(t *testing.T) {
	api, client := setup(t)
	api.fail500.Store(2)

	obj, err := openai.NewFilesStore(client).Upload(context.Background(), tempFile(t, "a.txt", "abc"), "a.txt")
	require.NoError(t, err)
	require.Equal(t, int64(3), obj.Size)
}

func TestServerErrorIsRemoteError(t *testing.T) {
	api, client := setup(t)
	client.SetRetry(0, time.Millisecond, time.Millisecond)
	api.fail500.Store(1)

	_, err := openai.NewFilesStore(client).Upload(context.Background(), tempFile(t, "a.txt", "abc"), "a.txt")

	var rerr *remote.Error
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, http.StatusInternalServerError, rerr.StatusCode)
}

func TestVectorStoreUploadWaitsForIngestion(t *testing.T) {
	api, client := setup(t)
	store := openai.NewVectorStore(client, "vs_1").SetPollInterval(time.Millisecond)
	ctx := context.Background()

	obj, err := store.Upload(ctx, tempFile(t, "notes.md", "# notes"), "notes.md")
	require.NoError(t, err)
	require.Equal(t, "notes.md", obj.Name)
	require.Equal(t, "assistants", api.files[obj.ID].Purpose)
	require.Equal(t, 0, api.attached[obj.ID])

	require.NoError(t, store.Delete(ctx, obj.ID))
	require.Empty(t, api.files)
	require.ErrorIs(t, store.Delete(ctx, obj.ID), remote.ErrNotFound)
}

func TestVectorStoreIngestionRejected(t *testing.T) {
	api, client := setup(t)
	store := openai.NewVectorStore(client, "vs_1").SetPollInterval(time.Millisecond)

	_, err := store.Upload(context.Background(), tempFile(t, "tool.exe", "MZ"), "tool.exe")

	var rejected *remote.RejectedError
	require.True(t, errors.As(err, &rejected))

	// the orphaned upload was removed again
	require.Empty(t, api.files)
}

func TestVectorStoreIngestionTimesOut(t *testing.T) {
	api, client := setup(t)
	api.stuck["big.pdf"] = true

	store := openai.NewVectorStore(client, "vs_1").
		SetPollInterval(time.Millisecond).
		SetPollTimeout(20 * time.Millisecond)

	_, err := store.Upload(context.Background(), tempFile(t, "big.pdf", "%PDF"), "big.pdf")
	require.ErrorIs(t, err, openai.ErrIngestTimeout)

	var rerr *remote.Error
	require.True(t, errors.As(err, &rerr))
	require.Equal(t, "ingest", rerr.Op)

	var rejected *remote.RejectedError
	require.False(t, errors.As(err, &rejected))

	// the stuck upload was removed again
	require.Empty(t, api.files)
}
