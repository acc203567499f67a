package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"tidy-go/internal/tidy"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content []byte
	ModTime time.Time
}

// MockFilesystemManager is an in-memory filesystem for testing.
// Paths are absolute and slash-separated.
type MockFilesystemManager struct {
	mu    sync.Mutex
	files map[string]*MockFile
	dirs  map[string]bool

	// FailOpen makes Open fail for the listed paths.
	FailOpen map[string]error
	// FailMove makes Move fail for the listed source paths.
	FailMove map[string]error
	// FailMkdir makes MkdirAll fail for the listed directories.
	FailMkdir map[string]error
	// StatSize overrides the size Stat reports, as for a file still growing.
	StatSize map[string]int64
	// Ignored lists base names IsIgnored reports as matching.
	Ignored map[string]bool
	// BeforeMove runs before each Move; tests use it to race a destination.
	BeforeMove func(dst string)
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:     make(map[string]*MockFile),
		dirs:      map[string]bool{"/": true},
		FailOpen:  make(map[string]error),
		FailMove:  make(map[string]error),
		FailMkdir: make(map[string]error),
		StatSize:  make(map[string]int64),
		Ignored:   make(map[string]bool),
	}
}

// AddFile adds a file, creating its parent directories.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	m.addDirLocked(filepath.Dir(path))
	m.files[path] = &MockFile{Content: content, ModTime: time.Now()}
}

// AddDirectory adds a directory and its parents.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addDirLocked(filepath.Clean(path))
}

func (m *MockFilesystemManager) addDirLocked(dir string) {
	for d := dir; !m.dirs[d]; d = filepath.Dir(d) {
		m.dirs[d] = true
	}
}

// Content returns a file's content and whether it exists.
func (m *MockFilesystemManager) Content(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[filepath.Clean(path)]
	if !ok {
		return nil, false
	}
	return f.Content, true
}

// FilesUnder returns every file path below dir, sorted.
func (m *MockFilesystemManager) FilesUnder(dir string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := filepath.Clean(dir) + string(filepath.Separator)
	var out []string
	for p := range m.files {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*tidy.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dirs[absPath] {
		return tidy.NewPath(absPath, true, &mockFileInfo{name: filepath.Base(absPath), isDir: true}), nil
	}
	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("stat path: %w", fs.ErrNotExist)
	}
	return tidy.NewPath(absPath, false, fileInfo(absPath, file)), nil
}

func (m *MockFilesystemManager) ListFiles(dir string) ([]*tidy.Path, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir = filepath.Clean(dir)
	if !m.dirs[dir] {
		return nil, fmt.Errorf("reading directory: %w", fs.ErrNotExist)
	}
	var paths []*tidy.Path
	for p, f := range m.files {
		if filepath.Dir(p) == dir {
			paths = append(paths, tidy.NewPath(p, false, fileInfo(p, f)))
		}
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i].Name() < paths[j].Name() })
	return paths, nil
}

func (m *MockFilesystemManager) Open(path *tidy.Path) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.FailOpen[path.String()]; err != nil {
		return nil, err
	}
	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path.String(), fs.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

func (m *MockFilesystemManager) Stat(path *tidy.Path) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("stat %s: %w", path.String(), fs.ErrNotExist)
	}
	info := fileInfo(path.String(), file)
	if size, ok := m.StatSize[path.String()]; ok {
		info.size = size
	}
	return info, nil
}

func (m *MockFilesystemManager) MkdirAll(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir = filepath.Clean(dir)
	if err := m.FailMkdir[dir]; err != nil {
		return err
	}
	if _, isFile := m.files[dir]; isFile {
		return fmt.Errorf("mkdir %s: not a directory", dir)
	}
	m.addDirLocked(dir)
	return nil
}

func (m *MockFilesystemManager) Exists(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	_, isFile := m.files[path]
	return isFile || m.dirs[path], nil
}

func (m *MockFilesystemManager) Move(src *tidy.Path, dst string) error {
	if m.BeforeMove != nil {
		m.BeforeMove(dst)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dst = filepath.Clean(dst)
	if err := m.FailMove[src.String()]; err != nil {
		return err
	}
	file, ok := m.files[src.String()]
	if !ok {
		return fmt.Errorf("moving %s: %w", src.Name(), fs.ErrNotExist)
	}
	if _, taken := m.files[dst]; taken || m.dirs[dst] {
		return fmt.Errorf("%w: %s", tidy.ErrDestinationExists, dst)
	}
	if !m.dirs[filepath.Dir(dst)] {
		return fmt.Errorf("moving %s: %w", src.Name(), fs.ErrNotExist)
	}

	delete(m.files, src.String())
	m.files[dst] = file
	return nil
}

func (m *MockFilesystemManager) IsIgnored(path *tidy.Path) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Ignored[path.Name()]
}

func fileInfo(path string, f *MockFile) *mockFileInfo {
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(f.Content)),
		modTime: f.ModTime,
	}
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	modTime time.Time
	isDir   bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

func (m *mockFileInfo) Mode() fs.FileMode {
	if m.isDir {
		return fs.ModeDir | 0755
	}
	return 0644
}

// Compile-time check
var _ tidy.FilesystemManager = (*MockFilesystemManager)(nil)
