package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ChunkSize is the read size used when hashing file contents.
const ChunkSize = 1024 * 1024

// FileRecord identifies the content state of a local file at the time
// it was fingerprinted.
type FileRecord struct {
	RelPath string
	Sha256  string
	Size    int64
	ModTime float64
}

// Equal reports whether two records describe the same content state.
func (r FileRecord) Equal(other FileRecord) bool {
	return r.Sha256 == other.Sha256 && r.Size == other.Size && r.ModTime == other.ModTime
}

// ModTimeSeconds converts a modification time into fractional unix seconds,
// the form stored in the manifest.
func ModTimeSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// File generates the record for the file at relpath under root.
func File(root, relpath string) (FileRecord, error) {
	fpath := filepath.Join(root, filepath.FromSlash(relpath))

	in, err := os.Open(fpath)
	if err != nil {
		return FileRecord{}, &FileReadError{Path: relpath, Op: "open", Err: err}
	}
	defer in.Close()

	// stat the open handle so size and mtime belong to the same file we hash
	info, err := in.Stat()
	if err != nil {
		return FileRecord{}, &FileReadError{Path: relpath, Op: "stat", Err: err}
	}

	hash, err := Reader(in)
	if err != nil {
		return FileRecord{}, &FileReadError{Path: relpath, Op: "hash", Err: err}
	}

	return FileRecord{
		RelPath: relpath,
		Sha256:  hash,
		Size:    info.Size(),
		ModTime: ModTimeSeconds(info.ModTime()),
	}, nil
}

// Reader hashes everything readable from in, ChunkSize bytes at a time.
func Reader(in io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(h, onlyReader{in}, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// onlyReader hides any WriterTo on the source so io.CopyBuffer really
// uses the fixed-size buffer.
type onlyReader struct {
	io.Reader
}
