package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"tidy-go/internal/tidy"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It performs actual filesystem operations using the os package.
type OSFilesystemManager struct {
	ignore *IgnoreMatcher

	mu         sync.Mutex
	dirIgnores map[string]*IgnoreMatcher // per-folder .tidyignore, loaded once
}

// NewOSFilesystemManager creates a new filesystem manager that operates on the
// real filesystem. ignore holds the configured filesystem.ignore patterns.
func NewOSFilesystemManager(ignore []string) *OSFilesystemManager {
	return &OSFilesystemManager{
		ignore:     NewIgnoreMatcher(ignore),
		dirIgnores: make(map[string]*IgnoreMatcher),
	}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*tidy.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	// Lstat so a symlink is reported as one instead of being followed.
	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if err := checkMode(absPath, info.Mode()); err != nil {
		return nil, err
	}

	return tidy.NewPath(absPath, info.IsDir(), info), nil
}

func checkMode(path string, mode fs.FileMode) error {
	switch {
	case mode&os.ModeSymlink != 0:
		return fmt.Errorf("symlinks not supported: %s", path)
	case mode&os.ModeDevice != 0:
		return fmt.Errorf("device files not supported: %s", path)
	case mode&os.ModeNamedPipe != 0:
		return fmt.Errorf("named pipes not supported: %s", path)
	case mode&os.ModeSocket != 0:
		return fmt.Errorf("sockets not supported: %s", path)
	}
	return nil
}

// ListFiles returns the regular files directly inside dir, sorted by name.
// Subdirectories and special files are not returned.
func (m *OSFilesystemManager) ListFiles(dir string) ([]*tidy.Path, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var paths []*tidy.Path
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		paths = append(paths, tidy.NewPath(filepath.Join(dir, entry.Name()), false, info))
	}

	sort.Slice(paths, func(i, j int) bool { return paths[i].Name() < paths[j].Name() })
	return paths, nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path *tidy.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path.String())
	}
	return os.Open(path.String())
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path *tidy.Path) (fs.FileInfo, error) {
	return os.Stat(path.String())
}

// MkdirAll creates dir and any missing parents.
func (m *OSFilesystemManager) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// Exists reports whether anything, including a dangling symlink, is at path.
func (m *OSFilesystemManager) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Move links src at dst and removes src, falling back to copy and remove
// when they are on different devices or links are unsupported. Link fails
// on an existing dst, so dst is never overwritten even if it appears
// concurrently.
func (m *OSFilesystemManager) Move(src *tidy.Path, dst string) error {
	err := os.Link(src.String(), dst)
	switch {
	case err == nil:
		if err := os.Remove(src.String()); err != nil {
			os.Remove(dst)
			return fmt.Errorf("removing source after link: %w", err)
		}
		return nil
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %s", tidy.ErrDestinationExists, dst)
	case isCrossDevice(err) || linkUnsupported(err):
		return copyAndRemove(src.String(), dst)
	default:
		return fmt.Errorf("moving %s: %w", src.Name(), err)
	}
}

// copyAndRemove copies src to a new file at dst then deletes src. dst is
// created with O_EXCL so a concurrent writer cannot be clobbered.
func copyAndRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", tidy.ErrDestinationExists, dst)
		}
		return fmt.Errorf("creating destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copying content: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("closing destination: %w", err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		os.Remove(dst)
		return fmt.Errorf("preserving modification time: %w", err)
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("removing source after copy: %w", err)
	}
	return nil
}

// IsIgnored reports whether path matches a configured pattern or a pattern
// from the .tidyignore file in its folder.
func (m *OSFilesystemManager) IsIgnored(path *tidy.Path) bool {
	if path.Name() == IgnoreFileName {
		return true
	}
	if m.ignore.Match(path.String()) {
		return true
	}
	return m.folderIgnores(filepath.Dir(path.String())).Match(path.String())
}

func (m *OSFilesystemManager) folderIgnores(dir string) *IgnoreMatcher {
	m.mu.Lock()
	defer m.mu.Unlock()

	if matcher, ok := m.dirIgnores[dir]; ok {
		return matcher
	}
	patterns, err := ParseIgnoreFile(filepath.Join(dir, IgnoreFileName))
	if err != nil {
		patterns = nil
	}
	matcher := NewIgnoreMatcher(patterns)
	m.dirIgnores[dir] = matcher
	return matcher
}

// Compile-time check that OSFilesystemManager implements tidy.FilesystemManager interface
var _ tidy.FilesystemManager = (*OSFilesystemManager)(nil)
