package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	json "github.com/goccy/go-json"
)

// FileName is the default name of the manifest document.
const FileName = ".filesync_manifest.json"

// Manifest maps relative paths to their last known sync state. It is
// safe for concurrent use: writers are serialised, readers share a lock.
type Manifest struct {
	path    string
	mu      sync.RWMutex
	entries map[string]*Entry
	extra   map[string]json.RawMessage
	flock   *flock.Flock
}

type document struct {
	Files       map[string]json.RawMessage `json:"files"`
	LastUpdated int64                      `json:"last_updated"`
}

// New returns an empty manifest that will be saved to path.
func New(path string) *Manifest {
	return &Manifest{
		path:    path,
		entries: make(map[string]*Entry),
		flock:   flock.New(path + ".lock"),
	}
}

// DefaultPath returns the manifest location for a sync root: next to the
// root, never inside it.
func DefaultPath(root string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(root)), FileName)
}

// Load reads the manifest at path. A missing file gives an empty
// manifest. An unparseable file is copied aside to path+".bak" and an
// empty manifest is returned together with a *ManifestCorruptError; the
// manifest is usable either way.
func Load(path string) (*Manifest, error) {
	m := New(path)

	if err := m.Reload(); err != nil {
		var cerr *ManifestCorruptError
		if errors.As(err, &cerr) {
			return m, err
		}
		return nil, err
	}
	return m, nil
}

// Reload replaces the entries held in memory with the document on disk.
// A run that writes the manifest calls it after Lock so it starts from
// what the previous holder saved. Errors are as for Load.
func (m *Manifest) Reload() error {
	data, err := os.ReadFile(m.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	fresh := &Manifest{entries: make(map[string]*Entry)}
	var result error
	if err == nil {
		if derr := fresh.decode(data); derr != nil {
			fresh = &Manifest{entries: make(map[string]*Entry)}

			cerr := &ManifestCorruptError{Path: m.path, Err: derr}
			backup := m.path + ".bak"
			if werr := os.WriteFile(backup, data, 0644); werr == nil {
				cerr.Backup = backup
			}
			result = cerr
		}
	}

	m.mu.Lock()
	m.entries = fresh.entries
	m.extra = fresh.extra
	m.mu.Unlock()

	return result
}

func (m *Manifest) decode(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	for relpath, edata := range doc.Files {
		entry, err := decodeEntry(relpath, edata)
		if err != nil {
			return fmt.Errorf("entry %s: %w", relpath, err)
		}
		m.entries[relpath] = entry
	}

	delete(raw, "files")
	delete(raw, "last_updated")
	if len(raw) > 0 {
		m.extra = raw
	}

	return nil
}

// Path is where the manifest is saved.
func (m *Manifest) Path() string {
	return m.path
}

func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// Get returns a copy of the entry for relpath.
func (m *Manifest) Get(relpath string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[relpath]
	if !ok {
		return Entry{}, false
	}
	return entry.clone(), true
}

// Put stores entry under its RelPath. Fields of a previous entry that this
// package does not own are kept.
func (m *Manifest) Put(entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := entry.clone()
	e.Fingerprint.RelPath = e.RelPath
	if prev, ok := m.entries[e.RelPath]; ok && e.extra == nil {
		e.extra = prev.clone().extra
	}
	m.entries[e.RelPath] = &e
}

// Update applies fn to the entry for relpath inside the write lock. It
// reports false and does nothing if there is no such entry.
func (m *Manifest) Update(relpath string, fn func(*Entry)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[relpath]
	if !ok {
		return false
	}
	fn(entry)
	entry.RelPath = relpath
	entry.Fingerprint.RelPath = relpath
	return true
}

func (m *Manifest) Remove(relpath string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, relpath)
}

// Paths returns all tracked relative paths in sorted order.
func (m *Manifest) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paths := make([]string, 0, len(m.entries))
	for p := range m.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Save writes the whole document to a temp file next to the manifest and
// renames it into place.
func (m *Manifest) Save() error {
	data, err := m.encode()
	if err != nil {
		return err
	}

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(m.path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		return err
	}

	success = true
	return nil
}

func (m *Manifest) encode() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make(map[string]json.RawMessage, len(m.entries))
	for relpath, entry := range m.entries {
		data, err := entry.encode()
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", relpath, err)
		}
		files[relpath] = data
	}

	doc := make(map[string]any, len(m.extra)+2)
	for k, v := range m.extra {
		doc[k] = v
	}
	doc["files"] = files
	doc["last_updated"] = time.Now().Unix()

	return json.MarshalIndent(doc, "", "  ")
}

// Lock takes an exclusive advisory lock so only one run at a time can
// write this manifest.
func (m *Manifest) Lock() error {
	locked, err := m.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock manifest: %w", err)
	}
	if !locked {
		return ErrManifestLocked
	}
	return nil
}

// Locked reports whether this manifest holds its lock.
func (m *Manifest) Locked() bool {
	return m.flock.Locked()
}

// Unlock releases the lock. The lock file stays behind: removing it would
// let a waiting run lock a file that a third run has already replaced.
func (m *Manifest) Unlock() error {
	if !m.flock.Locked() {
		return nil
	}
	if err := m.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock manifest: %w", err)
	}
	return nil
}
