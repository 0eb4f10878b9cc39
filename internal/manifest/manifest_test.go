package manifest_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"testing"

	"github.com/studio1767/filesync/internal/fingerprint"
	"github.com/studio1767/filesync/internal/manifest"
)

func entry(relpath, hash, id string) manifest.Entry {
	return manifest.Entry{
		RelPath: relpath,
		Fingerprint: fingerprint.FileRecord{
			Sha256:  hash,
			Size:    42,
			ModTime: 1700000000.25,
		},
		RemoteID:    id,
		UploadedAt:  time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Filename:    filepath.Base(relpath),
		Destination: "files",
	}
}

func TestMissingManifestIsEmpty(t *testing.T) {
	m, err := manifest.Load(filepath.Join(t.TempDir(), manifest.FileName))
	require.NoError(t, err)
	require.Equal(t, 0, m.Len())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), manifest.FileName)

	m := manifest.New(path)
	m.Put(entry("a.txt", "aa", "file-a"))
	m.Put(entry("dir/b.txt", "bb", "file-b"))
	require.NoError(t, m.Save())

	loaded, err := manifest.Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt", "dir/b.txt"}, loaded.Paths())

	got, ok := loaded.Get("dir/b.txt")
	require.True(t, ok)
	require.Equal(t, "file-b", got.RemoteID)
	require.Equal(t, "bb", got.Fingerprint.Sha256)
	require.Equal(t, "dir/b.txt", got.Fingerprint.RelPath)
	require.Equal(t, int64(42), got.Fingerprint.Size)
	require.Equal(t, 1700000000.25, got.Fingerprint.ModTime)
	require.True(t, got.UploadedAt.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))

	// no temp files left behind
	files, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestUnknownFieldsArePreserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), manifest.FileName)
	doc := `{
  "owner": "research",
  "last_updated": 1,
  "files": {
    "a.txt": {"sha256": "aa", "size": 3, "mtime": 12.5, "remote_object_id": "file-a", "note": {"k": 1}}
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	m, err := manifest.Load(path)
	require.NoError(t, err)

	e, ok := m.Get("a.txt")
	require.True(t, ok)
	e.RemoteID = "file-a2"
	m.Put(e)
	require.NoError(t, m.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Equal(t, "research", raw["owner"])

	files := raw["files"].(map[string]any)
	a := files["a.txt"].(map[string]any)
	require.Equal(t, "file-a2", a["remote_object_id"])
	require.Equal(t, map[string]any{"k": float64(1)}, a["note"])
}

func TestLegacyIdsAreMigrated(t *testing.T) {
	path := filepath.Join(t.TempDir(), manifest.FileName)
	doc := `{"files": {
  "a.txt": {"uploaded_file_id": "file-1", "sha256": "aa", "size": 3, "mtime": 12, "filename": "a.txt"},
  "b.txt": {"vs_file_id": "file-2", "vs_id": "vs_9", "sha256": "bb", "size": 4, "mtime": 13}
}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	m, err := manifest.Load(path)
	require.NoError(t, err)

	a, _ := m.Get("a.txt")
	require.Equal(t, "file-1", a.RemoteID)
	require.Equal(t, "files", a.Destination)

	b, _ := m.Get("b.txt")
	require.Equal(t, "file-2", b.RemoteID)
	require.Equal(t, "vector_store:vs_9", b.Destination)
}

func TestCorruptManifestIsBackedUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), manifest.FileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	m, err := manifest.Load(path)
	require.NotNil(t, m)
	require.Equal(t, 0, m.Len())

	var corrupt *manifest.ManifestCorruptError
	require.True(t, errors.As(err, &corrupt))
	require.Equal(t, path+".bak", corrupt.Backup)

	data, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	require.Equal(t, "{not json", string(data))
}

func TestRemoveAndUpdate(t *testing.T) {
	m := manifest.New(filepath.Join(t.TempDir(), manifest.FileName))
	m.Put(entry("a.txt", "aa", "file-a"))

	require.True(t, m.Update("a.txt", func(e *manifest.Entry) { e.RemoteID = "" }))
	e, _ := m.Get("a.txt")
	require.Empty(t, e.RemoteID)

	require.False(t, m.Update("nope", func(e *manifest.Entry) {}))

	m.Remove("a.txt")
	_, ok := m.Get("a.txt")
	require.False(t, ok)
}

func TestConcurrentPuts(t *testing.T) {
	m := manifest.New(filepath.Join(t.TempDir(), manifest.FileName))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Put(entry(filepath.Join("d", string(rune('a'+i%26)), string(rune('0'+i/26))), "h", "id"))
			m.Get("d/a/0")
			m.Paths()
		}(i)
	}
	wg.Wait()

	require.Equal(t, 50, m.Len())
	require.NoError(t, m.Save())
}

func TestLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), manifest.FileName)

	first := manifest.New(path)
	require.NoError(t, first.Lock())

	second := manifest.New(path)
	require.ErrorIs(t, second.Lock(), manifest.ErrManifestLocked)

	require.NoError(t, first.Unlock())
	require.NoError(t, second.Lock())
	require.True(t, second.Locked())
	require.NoError(t, second.Unlock())
	require.False(t, second.Locked())
}

func TestLockFileOutlivesUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), manifest.FileName)

	first := manifest.New(path)
	require.NoError(t, first.Lock())
	require.NoError(t, first.Unlock())

	// the file a waiting run may already have open stays the lock
	require.FileExists(t, path+".lock")

	second := manifest.New(path)
	require.NoError(t, second.Lock())
	require.ErrorIs(t, first.Lock(), manifest.ErrManifestLocked)
	require.NoError(t, second.Unlock())
}

func TestReloadUnderLockSeesPreviousHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), manifest.FileName)

	// loaded before the lock was free
	waiting, err := manifest.Load(path)
	require.NoError(t, err)

	holder := manifest.New(path)
	require.NoError(t, holder.Lock())
	holder.Put(entry("a.txt", "aa", "file-a"))
	require.NoError(t, holder.Save())
	require.NoError(t, holder.Unlock())

	require.NoError(t, waiting.Lock())
	defer waiting.Unlock()
	require.Equal(t, 0, waiting.Len())

	require.NoError(t, waiting.Reload())
	e, ok := waiting.Get("a.txt")
	require.True(t, ok)
	require.Equal(t, "file-a", e.RemoteID)
}

func TestDefaultPathIsOutsideRoot(t *testing.T) {
	require.Equal(t, filepath.Join("/data", manifest.FileName), manifest.DefaultPath("/data/project"))
	require.Equal(t, filepath.Join("/data", manifest.FileName), manifest.DefaultPath("/data/project/"))
}
