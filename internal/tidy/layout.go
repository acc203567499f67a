package tidy

import (
	"path/filepath"
	"strings"
)

// DefaultFolders maps each category to its folder under the output root.
var DefaultFolders = map[Category]string{
	CategoryCode:      filepath.Join("Documents", "Code"),
	CategoryImages:    filepath.Join("Media", "Images"),
	CategoryDocuments: filepath.Join("Documents", "Papers"),
	CategoryMedia:     filepath.Join("Media", "Videos"),
	CategoryArchives:  "Archives",
	CategoryApps:      "Applications",
	CategoryData:      "Data",
	CategoryMisc:      "Miscellaneous",
}

// DefaultDuplicatesDir is the duplicates folder name under the output root.
const DefaultDuplicatesDir = "Duplicates"

// Layout describes the watch locations and the managed output tree.
// All paths are injected here; the organizer holds no global paths.
type Layout struct {
	WatchDirs     []string
	OutputRoot    string
	DuplicatesDir string              // relative to OutputRoot unless absolute
	Folders       map[Category]string // relative to OutputRoot unless absolute; missing entries use DefaultFolders
}

// CategoryDir returns the absolute folder for c.
func (l Layout) CategoryDir(c Category) string {
	rel, ok := l.Folders[c]
	if !ok || rel == "" {
		rel, ok = DefaultFolders[c]
		if !ok {
			rel = DefaultFolders[CategoryMisc]
		}
	}
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(l.OutputRoot, rel)
}

// DuplicatesPath returns the absolute duplicates folder.
func (l Layout) DuplicatesPath() string {
	dir := l.DuplicatesDir
	if dir == "" {
		dir = DefaultDuplicatesDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(l.OutputRoot, dir)
}

// Contains reports whether path lies inside the managed output tree or any
// custom folder files are filed into.
func (l Layout) Contains(path string) bool {
	for _, root := range l.managedDirs() {
		if within(root, path) {
			return true
		}
	}
	return false
}

// managedDirs lists every absolute folder the organizer files into. Custom
// folders may be absolute and live outside OutputRoot.
func (l Layout) managedDirs() []string {
	dirs := []string{l.OutputRoot, l.DuplicatesPath()}
	for _, c := range Categories {
		dirs = append(dirs, l.CategoryDir(c))
	}
	managed := dirs[:0]
	for _, d := range dirs {
		if filepath.IsAbs(d) {
			managed = append(managed, d)
		}
	}
	return managed
}

func within(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
