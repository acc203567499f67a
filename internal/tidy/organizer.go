package tidy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"tidy-go/internal/model"
)

// duplicateTimeFormat is the timestamp suffix of files moved to the duplicates folder.
const duplicateTimeFormat = "20060102_150405"

// maxMoveAttempts bounds retries when a destination name is taken between
// choosing it and moving onto it.
const maxMoveAttempts = 3

// Organizer drives scan passes over the watch locations. Each file is
// hashed, checked against the HashStore, then either filed under its
// category or moved to the duplicates folder. Files are processed strictly
// one at a time; one file's failure never stops the batch.
type Organizer struct {
	store      HashStore
	fsmgr      FilesystemManager
	classifier Classifier
	layout     Layout
	logger     Logger
	clock      Clock
}

// NewOrganizer creates an Organizer with the provided dependencies.
func NewOrganizer(store HashStore, fsmgr FilesystemManager, layout Layout, logger Logger, clock Clock) *Organizer {
	return &Organizer{
		store:  store,
		fsmgr:  fsmgr,
		layout: layout,
		logger: logger,
		clock:  clock,
	}
}

// Layout returns the organizer's layout.
func (o *Organizer) Layout() Layout {
	return o.layout
}

// Prepare creates the output root. Failure wraps ErrOutputRoot.
func (o *Organizer) Prepare() error {
	if o.layout.OutputRoot == "" {
		return fmt.Errorf("%w: no output root configured", ErrOutputRoot)
	}
	if err := o.fsmgr.MkdirAll(o.layout.OutputRoot); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputRoot, err)
	}
	return nil
}

// Scan runs one pass over every watch directory (top-level entries only).
// The only error returned for a completed pass is ErrOutputRoot; a
// cancelled ctx stops between files and returns the partial summary.
func (o *Organizer) Scan(ctx context.Context) (*Summary, error) {
	if err := o.Prepare(); err != nil {
		return nil, err
	}

	o.logger.Info("scan started", "watch_dirs", strings.Join(o.layout.WatchDirs, ","))
	summary := &Summary{}

	for _, dir := range o.layout.WatchDirs {
		exists, err := o.fsmgr.Exists(dir)
		if err != nil || !exists {
			o.logger.Warn("watch folder not available", "dir", dir)
			continue
		}

		o.logger.Info("scanning folder", "dir", dir)
		files, err := o.fsmgr.ListFiles(dir)
		if err != nil {
			o.logger.Error("listing folder failed", "dir", dir, "error", err)
			continue
		}

		for _, f := range files {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			summary.Add(o.organize(f))
		}
	}

	o.logger.Info("scan complete",
		"processed", summary.Processed,
		"moved", summary.Moved,
		"duplicates", summary.Duplicates,
		"skipped", summary.Skipped,
	)
	return summary, nil
}

// OrganizeFile processes a single file by path. Directories and files that
// no longer exist are reported as ignored and skipped respectively.
func (o *Organizer) OrganizeFile(rawPath string) *Outcome {
	p, err := o.fsmgr.Resolve(rawPath)
	if err != nil {
		return o.skip(&Outcome{Path: rawPath}, "could not resolve path", err)
	}
	if p.IsDir() {
		return &Outcome{Path: p.String(), Action: ActionIgnored, Reason: "directory"}
	}
	return o.organize(p)
}

func (o *Organizer) organize(p *Path) *Outcome {
	out := &Outcome{Path: p.String()}

	if reason := o.ignoreReason(p); reason != "" {
		out.Action = ActionIgnored
		out.Reason = reason
		o.logger.Debug("file ignored", "path", p.String(), "reason", reason)
		return out
	}

	hash, size, err := o.hash(p)
	if err != nil {
		return o.skip(out, "could not calculate hash", err)
	}
	out.Hash = hash

	// A file still being written would be filed under a hash of partial content.
	info, err := o.fsmgr.Stat(p)
	if err != nil {
		return o.skip(out, "could not calculate hash", err)
	}
	if info.Size() != size {
		return o.skip(out, "file changed while hashing", fmt.Errorf("size changed: %d -> %d", size, info.Size()))
	}

	original, err := o.store.Lookup(hash)
	if err != nil {
		o.logger.Warn("hash lookup failed, treating as new content", "path", p.String(), "error", err)
		original = nil
	}
	if original != nil {
		return o.relocateDuplicate(p, out, original)
	}

	class := o.classifier.Classify(o.candidate(p, size))
	out.Category = class.Category
	out.Reason = class.Reason

	destDir := o.layout.CategoryDir(class.Category)
	dest, err := o.relocate(p, destDir, p.Name())
	if err != nil {
		return o.skip(out, "relocation failed", err)
	}
	out.Action = ActionMoved
	out.Destination = dest

	record := &model.HashRecord{
		ContentHash:  hash,
		OriginalPath: dest,
		Filename:     p.Name(),
		OrganizedAt:  o.clock.Now(),
		SizeBytes:    size,
	}
	if err := o.store.Upsert(record); err != nil {
		out.Err = err
		o.logger.Error("recording hash failed", "path", dest, "hash", hash, "error", err)
	}

	o.logger.Info("file moved",
		"file", p.Name(),
		"category", string(class.Category),
		"dest", dest,
		"reason", class.Reason,
	)
	return out
}

// relocateDuplicate moves p into the duplicates folder under a timestamped
// name. The canonical record is left untouched.
func (o *Organizer) relocateDuplicate(p *Path, out *Outcome, original *model.HashRecord) *Outcome {
	out.Original = original
	out.Reason = fmt.Sprintf("duplicate of %s", original.OriginalPath)

	stem, ext := splitName(p.Name())
	name := fmt.Sprintf("%s_duplicate_%s%s", stem, o.clock.Now().Format(duplicateTimeFormat), ext)

	dest, err := o.relocate(p, o.layout.DuplicatesPath(), name)
	if err != nil {
		return o.skip(out, "moving duplicate failed", err)
	}
	out.Action = ActionDuplicate
	out.Destination = dest

	o.logger.Info("duplicate detected",
		"file", p.Name(),
		"dest", dest,
		"original", original.OriginalPath,
		"original_name", original.Filename,
		"organized_at", original.OrganizedAt.UTC().Format("2006-01-02T15:04:05Z"),
	)
	return out
}

// relocate moves p into dir as name, resolving name collisions with a
// numeric suffix. Returns the final destination.
func (o *Organizer) relocate(p *Path, dir, name string) (string, error) {
	if err := o.fsmgr.MkdirAll(dir); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	var lastErr error
	for attempt := 0; attempt < maxMoveAttempts; attempt++ {
		dest, err := o.freeName(dir, name)
		if err != nil {
			return "", err
		}
		err = o.fsmgr.Move(p, dest)
		if err == nil {
			return dest, nil
		}
		if !errors.Is(err, ErrDestinationExists) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// freeName returns dir/name, or dir/<stem>_<n><ext> for the smallest n >= 1
// that is not taken.
func (o *Organizer) freeName(dir, name string) (string, error) {
	stem, ext := splitName(name)
	candidate := filepath.Join(dir, name)
	for n := 1; ; n++ {
		exists, err := o.fsmgr.Exists(candidate)
		if err != nil {
			return "", fmt.Errorf("checking destination: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}
}

func (o *Organizer) ignoreReason(p *Path) string {
	switch {
	case strings.HasPrefix(p.Name(), "."):
		return "hidden file"
	case o.layout.Contains(p.String()):
		return "already organized"
	case o.fsmgr.IsIgnored(p):
		return "matches ignore pattern"
	}
	return ""
}

func (o *Organizer) hash(p *Path) (string, int64, error) {
	r, err := o.fsmgr.Open(p)
	if err != nil {
		return "", 0, err
	}
	defer r.Close()
	return HashFile(r)
}

// candidate builds the classifier input. Preview read failures are not
// fatal; the file is then classified without content.
func (o *Organizer) candidate(p *Path, size int64) Candidate {
	c := Candidate{Name: p.Name(), Ext: p.Ext(), Size: size}
	if !o.classifier.WantsPreview(c.Ext) {
		return c
	}

	r, err := o.fsmgr.Open(p)
	if err != nil {
		o.logger.Debug("content preview unavailable", "path", p.String(), "error", err)
		return c
	}
	defer r.Close()

	buf, err := io.ReadAll(io.LimitReader(r, PreviewSize))
	if err != nil {
		o.logger.Debug("content preview unavailable", "path", p.String(), "error", err)
	}
	c.Preview = buf
	return c
}

func (o *Organizer) skip(out *Outcome, reason string, err error) *Outcome {
	out.Action = ActionSkipped
	out.Reason = reason
	out.Err = err
	o.logger.Warn("file skipped", "path", out.Path, "reason", reason, "error", err)
	return out
}

// splitName splits "report.final.pdf" into "report.final" and ".pdf".
func splitName(name string) (string, string) {
	ext := filepath.Ext(name)
	if ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}
