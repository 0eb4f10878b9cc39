package manifest

import (
	"time"

	json "github.com/goccy/go-json"

	"github.com/studio1767/filesync/internal/fingerprint"
)

// Entry is the last known state of one relative path.
type Entry struct {
	RelPath     string
	Fingerprint fingerprint.FileRecord

	// RemoteID is only set once the remote store has acknowledged the object.
	RemoteID    string
	UploadedAt  time.Time
	Filename    string
	Destination string

	// Rejected holds the reason the remote store refused the content. Set
	// instead of RemoteID.
	Rejected string

	extra map[string]json.RawMessage
}

// the keys this package owns; anything else in a stored entry is
// carried through untouched
var entryKeys = []string{
	"sha256", "size", "mtime", "remote_object_id", "uploaded_at",
	"filename", "destination", "rejected",
}

type entryDoc struct {
	Sha256      string  `json:"sha256,omitempty"`
	Size        int64   `json:"size"`
	ModTime     float64 `json:"mtime"`
	RemoteID    string  `json:"remote_object_id,omitempty"`
	UploadedAt  string  `json:"uploaded_at,omitempty"`
	Filename    string  `json:"filename,omitempty"`
	Destination string  `json:"destination,omitempty"`
	Rejected    string  `json:"rejected,omitempty"`

	// written by older uploaders; migrated on load
	LegacyFileID   string `json:"uploaded_file_id,omitempty"`
	LegacyVsFileID string `json:"vs_file_id,omitempty"`
	LegacyVsID     string `json:"vs_id,omitempty"`
}

func decodeEntry(relpath string, data []byte) (*Entry, error) {
	var doc entryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for _, key := range entryKeys {
		delete(raw, key)
	}

	entry := &Entry{
		RelPath: relpath,
		Fingerprint: fingerprint.FileRecord{
			RelPath: relpath,
			Sha256:  doc.Sha256,
			Size:    doc.Size,
			ModTime: doc.ModTime,
		},
		RemoteID:    doc.RemoteID,
		Filename:    doc.Filename,
		Destination: doc.Destination,
		Rejected:    doc.Rejected,
	}
	if doc.UploadedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, doc.UploadedAt); err == nil {
			entry.UploadedAt = ts
		}
	}

	// migrate ids written by older uploaders
	if entry.RemoteID == "" && doc.LegacyVsFileID != "" && doc.LegacyVsID != "" {
		entry.RemoteID = doc.LegacyVsFileID
		entry.Destination = "vector_store:" + doc.LegacyVsID
		delete(raw, "vs_file_id")
		delete(raw, "vs_id")
	} else if entry.RemoteID == "" && doc.LegacyFileID != "" {
		entry.RemoteID = doc.LegacyFileID
		entry.Destination = "files"
		delete(raw, "uploaded_file_id")
	}

	if len(raw) > 0 {
		entry.extra = raw
	}

	return entry, nil
}

func (e *Entry) encode() (json.RawMessage, error) {
	doc := entryDoc{
		Sha256:      e.Fingerprint.Sha256,
		Size:        e.Fingerprint.Size,
		ModTime:     e.Fingerprint.ModTime,
		RemoteID:    e.RemoteID,
		Filename:    e.Filename,
		Destination: e.Destination,
		Rejected:    e.Rejected,
	}
	if !e.UploadedAt.IsZero() {
		doc.UploadedAt = e.UploadedAt.UTC().Format(time.RFC3339Nano)
	}

	data, err := json.Marshal(&doc)
	if err != nil {
		return nil, err
	}
	if len(e.extra) == 0 {
		return data, nil
	}

	// merge the preserved fields back in
	merged := make(map[string]json.RawMessage, len(e.extra)+len(entryKeys))
	for k, v := range e.extra {
		merged[k] = v
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(data, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		merged[k] = v
	}

	return json.Marshal(merged)
}

func (e *Entry) clone() Entry {
	c := *e
	if e.extra != nil {
		c.extra = make(map[string]json.RawMessage, len(e.extra))
		for k, v := range e.extra {
			c.extra[k] = v
		}
	}
	return c
}
