package tidy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
)

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	// It resolves the path to an absolute path, stats it, and validates
	// it's a regular file or directory (not a symlink, device, etc.).
	Resolve(rawPath string) (*Path, error)

	// ListFiles returns the regular files directly inside dir (no recursion),
	// sorted by name.
	ListFiles(dir string) ([]*Path, error)

	// Open opens a file for reading.
	Open(path *Path) (io.ReadCloser, error)

	// Stat returns fresh file info for a path.
	Stat(path *Path) (fs.FileInfo, error)

	// MkdirAll creates dir and any missing parents.
	MkdirAll(dir string) error

	// Exists reports whether anything exists at path.
	Exists(path string) (bool, error)

	// Move relocates src to dst. It never overwrites: if dst exists it
	// returns ErrDestinationExists and leaves src in place.
	Move(src *Path, dst string) error

	// IsIgnored reports whether the file matches a configured ignore pattern.
	IsIgnored(path *Path) bool
}

// HashFile streams r through SHA-256 and returns the hex digest and the
// number of bytes read.
func HashFile(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("hashing content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
