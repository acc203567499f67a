// Package watch feeds newly arrived files in the watch folders to a handler.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"tidy-go/internal/tidy"
)

// DefaultSettle is how long a file must stay quiet before it is handled.
// Browsers and copy tools write in bursts; handling the first event would
// hash a partial file.
const DefaultSettle = 2 * time.Second

// Handler processes one settled file.
type Handler func(path string)

// Watcher debounces fsnotify events for the top level of each folder and
// calls the handler for each settled file. All handler calls happen on the
// goroutine running Run, one at a time.
type Watcher struct {
	dirs    []string
	settle  time.Duration
	handler Handler
	logger  tidy.Logger
}

// New creates a Watcher. A settle of zero uses DefaultSettle.
func New(dirs []string, settle time.Duration, handler Handler, logger tidy.Logger) *Watcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Watcher{dirs: dirs, settle: settle, handler: handler, logger: logger}
}

// Run watches until ctx is done. Folders that cannot be watched are
// logged and skipped; it is an error if none can be.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	watched := 0
	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			w.logger.Warn("cannot watch folder", "dir", dir, "error", err)
			continue
		}
		w.logger.Info("watching folder", "dir", dir)
		watched++
	}
	if watched == 0 {
		return errors.New("no watch folders could be watched")
	}

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(max(w.settle/4, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.relevant(ev) {
				pending[ev.Name] = time.Now()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case now := <-ticker.C:
			for _, path := range settled(pending, now, w.settle) {
				if ctx.Err() != nil {
					return nil
				}
				if isRegularFile(path) {
					w.handler(path)
				}
			}
		}
	}
}

// relevant reports whether ev may announce a new or growing visible file.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	return !strings.HasPrefix(filepath.Base(ev.Name), ".")
}

// settled removes and returns, sorted, the paths quiet for at least settle.
func settled(pending map[string]time.Time, now time.Time, settle time.Duration) []string {
	var ready []string
	for path, last := range pending {
		if now.Sub(last) >= settle {
			ready = append(ready, path)
			delete(pending, path)
		}
	}
	sort.Strings(ready)
	return ready
}

func isRegularFile(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode().IsRegular()
}
