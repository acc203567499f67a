package tidy_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tidy-go/internal/model"
	"tidy-go/internal/testutil"
	"tidy-go/internal/tidy"
)

const (
	downloads = "/home/me/Downloads"
	desktop   = "/home/me/Desktop"
	outRoot   = "/home/me/SmartOrganized"
)

type fixture struct {
	fs    *testutil.MockFilesystemManager
	store tidy.HashStore
	clock *testutil.StubClock
	org   *tidy.Organizer
}

func newLayout() tidy.Layout {
	return tidy.Layout{
		WatchDirs:  []string{downloads, desktop},
		OutputRoot: outRoot,
	}
}

func newFixture(t *testing.T, store tidy.HashStore) *fixture {
	t.Helper()
	if store == nil {
		store = testutil.NewTestDatabase(t)
	}
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddDirectory(downloads)
	fsmgr.AddDirectory(desktop)
	clock := testutil.FixedClock()

	return &fixture{
		fs:    fsmgr,
		store: store,
		clock: clock,
		org:   tidy.NewOrganizer(store, fsmgr, newLayout(), tidy.NewNopLogger(), clock),
	}
}

func (f *fixture) scan(t *testing.T) *tidy.Summary {
	t.Helper()
	summary, err := f.org.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	return summary
}

func (f *fixture) mustExist(t *testing.T, path string, content string) {
	t.Helper()
	got, ok := f.fs.Content(path)
	if !ok {
		t.Fatalf("%s does not exist; files under output root: %v", path, f.fs.FilesUnder(outRoot))
	}
	if string(got) != content {
		t.Errorf("%s content = %q, want %q", path, got, content)
	}
}

func (f *fixture) mustNotExist(t *testing.T, path string) {
	t.Helper()
	if _, ok := f.fs.Content(path); ok {
		t.Errorf("%s still exists", path)
	}
}

func TestOrganizer_Scan_DuplicateDetection(t *testing.T) {
	f := newFixture(t, nil)
	f.fs.AddFile(downloads+"/a.txt", []byte("hello"))
	f.fs.AddFile(downloads+"/b.txt", []byte("hello"))

	summary := f.scan(t)

	f.mustExist(t, outRoot+"/Documents/Code/a.txt", "hello")
	f.mustExist(t, outRoot+"/Duplicates/b_duplicate_20240301_143052.txt", "hello")
	f.mustNotExist(t, downloads+"/a.txt")
	f.mustNotExist(t, downloads+"/b.txt")

	if summary.Processed != 2 || summary.Moved != 1 || summary.Duplicates != 1 {
		t.Errorf("summary = %+v, want processed 2, moved 1, duplicates 1", summary)
	}
	if got := summary.Message(); got != "Organized 2 files! Found 1 duplicates." {
		t.Errorf("Message() = %q", got)
	}

	rec, err := f.store.Lookup(testutil.SHA256Hex([]byte("hello")))
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if rec == nil {
		t.Fatal("hash not recorded")
	}
	if rec.OriginalPath != outRoot+"/Documents/Code/a.txt" {
		t.Errorf("OriginalPath = %q", rec.OriginalPath)
	}
	if rec.Filename != "a.txt" {
		t.Errorf("Filename = %q, want a.txt", rec.Filename)
	}
	if rec.SizeBytes != 5 {
		t.Errorf("SizeBytes = %d, want 5", rec.SizeBytes)
	}
	if !rec.OrganizedAt.Equal(f.clock.Now()) {
		t.Errorf("OrganizedAt = %v, want %v", rec.OrganizedAt, f.clock.Now())
	}

	dup := summary.Outcomes[1]
	if dup.Action != tidy.ActionDuplicate || dup.Original == nil || dup.Original.Filename != "a.txt" {
		t.Errorf("duplicate outcome = %+v", dup)
	}
}

func TestOrganizer_Scan_ClassifiesIntoCategoryFolders(t *testing.T) {
	f := newFixture(t, nil)
	f.fs.AddFile(downloads+"/resume_final.pdf", []byte("%PDF resume"))
	f.fs.AddFile(downloads+"/main.py", []byte("import sys"))
	f.fs.AddFile(desktop+"/Screenshot 1.png", []byte("png"))
	f.fs.AddFile(desktop+"/movie.mp4", []byte("mp4"))
	f.fs.AddFile(desktop+"/thing.xyz", []byte("?"))

	summary := f.scan(t)

	f.mustExist(t, outRoot+"/Documents/Papers/resume_final.pdf", "%PDF resume")
	f.mustExist(t, outRoot+"/Documents/Code/main.py", "import sys")
	f.mustExist(t, outRoot+"/Media/Images/Screenshot 1.png", "png")
	f.mustExist(t, outRoot+"/Media/Videos/movie.mp4", "mp4")
	f.mustExist(t, outRoot+"/Miscellaneous/thing.xyz", "?")

	if summary.Moved != 5 {
		t.Errorf("Moved = %d, want 5", summary.Moved)
	}
	for _, o := range summary.Outcomes {
		if o.Path == downloads+"/resume_final.pdf" && !strings.HasPrefix(o.Reason, "Detected document") {
			t.Errorf("resume reason = %q", o.Reason)
		}
	}
}

func TestOrganizer_Scan_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.fs.AddFile(downloads+"/a.txt", []byte("hello"))

	f.scan(t)
	before := f.fs.FilesUnder(outRoot)

	second := f.scan(t)
	if second.Processed != 0 {
		t.Errorf("second scan processed %d files, want 0", second.Processed)
	}
	after := f.fs.FilesUnder(outRoot)
	if strings.Join(before, ",") != strings.Join(after, ",") {
		t.Errorf("second scan changed output tree: %v -> %v", before, after)
	}

	// The same content arriving later is a duplicate of the first copy.
	f.clock.Advance(61 * time.Second)
	f.fs.AddFile(desktop+"/copy of a.txt", []byte("hello"))
	third := f.scan(t)
	if third.Duplicates != 1 {
		t.Errorf("third scan duplicates = %d, want 1", third.Duplicates)
	}
	f.mustExist(t, outRoot+"/Duplicates/copy of a_duplicate_20240301_143153.txt", "hello")
}

func TestOrganizer_Scan_NameCollisions(t *testing.T) {
	f := newFixture(t, nil)
	f.fs.AddFile(outRoot+"/Documents/Code/a.txt", []byte("already here"))
	f.fs.AddFile(downloads+"/a.txt", []byte("first"))
	f.fs.AddFile(desktop+"/a.txt", []byte("second"))

	f.scan(t)

	f.mustExist(t, outRoot+"/Documents/Code/a.txt", "already here")
	f.mustExist(t, outRoot+"/Documents/Code/a_1.txt", "first")
	f.mustExist(t, outRoot+"/Documents/Code/a_2.txt", "second")
}

func TestOrganizer_Scan_DuplicateNameCollision(t *testing.T) {
	f := newFixture(t, nil)
	f.fs.AddFile(downloads+"/a.bin", []byte("same"))
	f.fs.AddFile(downloads+"/b.bin", []byte("same"))
	f.fs.AddFile(desktop+"/b.bin", []byte("same"))

	summary := f.scan(t)

	if summary.Duplicates != 2 {
		t.Fatalf("Duplicates = %d, want 2", summary.Duplicates)
	}
	f.mustExist(t, outRoot+"/Duplicates/b_duplicate_20240301_143052.bin", "same")
	f.mustExist(t, outRoot+"/Duplicates/b_duplicate_20240301_143052_1.bin", "same")
}

func TestOrganizer_Scan_StoreUnavailable(t *testing.T) {
	f := newFixture(t, &tidy.UnavailableStore{Cause: errors.New("disk I/O error")})
	f.fs.AddFile(downloads+"/a.txt", []byte("hello"))
	f.fs.AddFile(downloads+"/b.txt", []byte("hello"))

	summary := f.scan(t)

	if summary.Duplicates != 0 {
		t.Errorf("Duplicates = %d, want 0 when store is unavailable", summary.Duplicates)
	}
	if summary.Moved != 2 {
		t.Errorf("Moved = %d, want 2", summary.Moved)
	}
	f.mustExist(t, outRoot+"/Documents/Code/a.txt", "hello")
	f.mustExist(t, outRoot+"/Documents/Code/b.txt", "hello")

	for _, o := range summary.Outcomes {
		if !tidy.IsStorageError(o.Err) {
			t.Errorf("outcome %s Err = %v, want storage error", o.Path, o.Err)
		}
		if !errors.Is(o.Err, tidy.ErrStorageUnavailable) {
			t.Errorf("outcome %s Err = %v, want ErrStorageUnavailable", o.Path, o.Err)
		}
	}
}

func TestOrganizer_Scan_UnreadableFileIsSkipped(t *testing.T) {
	f := newFixture(t, nil)
	f.fs.AddFile(downloads+"/a.txt", []byte("a"))
	f.fs.AddFile(downloads+"/locked.bin", []byte("secret"))
	f.fs.AddFile(downloads+"/z.txt", []byte("z"))
	f.fs.FailOpen[downloads+"/locked.bin"] = errors.New("permission denied")

	summary := f.scan(t)

	if summary.Processed != 3 || summary.Moved != 2 || summary.Skipped != 1 {
		t.Errorf("summary = %+v, want processed 3, moved 2, skipped 1", summary)
	}
	f.mustExist(t, downloads+"/locked.bin", "secret")
	f.mustExist(t, outRoot+"/Documents/Code/z.txt", "z")

	skipped := summary.Outcomes[1]
	if skipped.Action != tidy.ActionSkipped || skipped.Reason != "could not calculate hash" || skipped.Err == nil {
		t.Errorf("skipped outcome = %+v", skipped)
	}
	if rec, _ := f.store.Lookup(testutil.SHA256Hex([]byte("secret"))); rec != nil {
		t.Error("unreadable file was recorded")
	}
	if got := summary.Message(); got != "Organized 3 files! Skipped 1." {
		t.Errorf("Message() = %q", got)
	}
}

func TestOrganizer_Scan_GrowingFileIsSkipped(t *testing.T) {
	f := newFixture(t, nil)
	f.fs.AddFile(downloads+"/movie.mp4", []byte("first chunk"))
	f.fs.StatSize[downloads+"/movie.mp4"] = 4096

	summary := f.scan(t)

	o := summary.Outcomes[0]
	if o.Action != tidy.ActionSkipped || o.Reason != "file changed while hashing" {
		t.Errorf("outcome = %+v, want skipped as changed", o)
	}
	f.mustExist(t, downloads+"/movie.mp4", "first chunk")
	if rec, _ := f.store.Lookup(testutil.SHA256Hex([]byte("first chunk"))); rec != nil {
		t.Error("partial content was recorded")
	}
}

func TestOrganizer_Scan_IgnoredFiles(t *testing.T) {
	f := newFixture(t, nil)
	f.fs.AddFile(downloads+"/.DS_Store", []byte("x"))
	f.fs.AddFile(downloads+"/movie.mkv.part", []byte("partial"))
	f.fs.AddFile(downloads+"/keep.txt", []byte("keep"))
	f.fs.Ignored["movie.mkv.part"] = true

	summary := f.scan(t)

	if summary.Ignored != 2 || summary.Processed != 1 {
		t.Errorf("summary = %+v, want ignored 2, processed 1", summary)
	}
	f.mustExist(t, downloads+"/.DS_Store", "x")
	f.mustExist(t, downloads+"/movie.mkv.part", "partial")
}

func TestOrganizer_Scan_OutputTreeInsideWatchDir(t *testing.T) {
	store := testutil.NewTestDatabase(t)
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile(outRoot+"/Documents/Code/a.txt", []byte("filed"))

	layout := tidy.Layout{WatchDirs: []string{outRoot + "/Documents/Code"}, OutputRoot: outRoot}
	org := tidy.NewOrganizer(store, fsmgr, layout, tidy.NewNopLogger(), testutil.FixedClock())

	summary, err := org.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if summary.Ignored != 1 || summary.Outcomes[0].Reason != "already organized" {
		t.Errorf("summary = %+v, want the file ignored as already organized", summary)
	}
}

func TestOrganizer_Scan_MissingWatchDir(t *testing.T) {
	store := testutil.NewTestDatabase(t)
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile(desktop+"/a.txt", []byte("a"))

	org := tidy.NewOrganizer(store, fsmgr, newLayout(), tidy.NewNopLogger(), testutil.FixedClock())
	summary, err := org.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if summary.Moved != 1 {
		t.Errorf("Moved = %d, want 1", summary.Moved)
	}
}

func TestOrganizer_Scan_OutputRootFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.fs.AddFile(downloads+"/a.txt", []byte("a"))
	f.fs.FailMkdir[outRoot] = errors.New("read-only file system")

	_, err := f.org.Scan(context.Background())
	if !errors.Is(err, tidy.ErrOutputRoot) {
		t.Fatalf("Scan() error = %v, want ErrOutputRoot", err)
	}
	f.mustExist(t, downloads+"/a.txt", "a")
}

func TestOrganizer_Scan_StoreFailures(t *testing.T) {
	t.Run("lookup failure is treated as new content", func(t *testing.T) {
		store := &testutil.FailingStore{LookupErr: errors.New("database is locked")}
		f := newFixture(t, store)
		f.fs.AddFile(downloads+"/a.txt", []byte("a"))

		summary := f.scan(t)

		if summary.Moved != 1 {
			t.Errorf("Moved = %d, want 1", summary.Moved)
		}
		if store.Upserts != 1 {
			t.Errorf("Upserts = %d, want 1", store.Upserts)
		}
	})

	t.Run("upsert failure leaves file relocated", func(t *testing.T) {
		upsertErr := &tidy.StorageError{Op: "upsert", Err: errors.New("disk full")}
		store := &testutil.FailingStore{UpsertErr: upsertErr}
		f := newFixture(t, store)
		f.fs.AddFile(downloads+"/a.txt", []byte("a"))

		summary := f.scan(t)

		o := summary.Outcomes[0]
		if o.Action != tidy.ActionMoved {
			t.Errorf("Action = %s, want moved", o.Action)
		}
		if !errors.Is(o.Err, upsertErr) {
			t.Errorf("Err = %v, want upsert error", o.Err)
		}
		f.mustExist(t, outRoot+"/Documents/Code/a.txt", "a")
	})
}

func TestOrganizer_Scan_MoveFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.fs.AddFile(downloads+"/a.txt", []byte("a"))
	f.fs.AddFile(downloads+"/b.txt", []byte("b"))
	f.fs.FailMove[downloads+"/a.txt"] = errors.New("operation not permitted")

	summary := f.scan(t)

	if summary.Skipped != 1 || summary.Moved != 1 {
		t.Errorf("summary = %+v, want skipped 1, moved 1", summary)
	}
	f.mustExist(t, downloads+"/a.txt", "a")
	if rec, _ := f.store.Lookup(testutil.SHA256Hex([]byte("a"))); rec != nil {
		t.Error("hash recorded for a file that was not moved")
	}
}

func TestOrganizer_Scan_DestinationTakenDuringMove(t *testing.T) {
	f := newFixture(t, nil)
	f.fs.AddFile(downloads+"/a.txt", []byte("mine"))

	raced := false
	f.fs.BeforeMove = func(dst string) {
		if !raced {
			raced = true
			f.fs.AddFile(dst, []byte("theirs"))
		}
	}

	summary := f.scan(t)

	if summary.Moved != 1 {
		t.Fatalf("Moved = %d, want 1", summary.Moved)
	}
	f.mustExist(t, outRoot+"/Documents/Code/a.txt", "theirs")
	f.mustExist(t, outRoot+"/Documents/Code/a_1.txt", "mine")
}

func TestOrganizer_Scan_CustomFolders(t *testing.T) {
	store := testutil.NewTestDatabase(t)
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile(downloads+"/main.go.txt", []byte("package main"))
	fsmgr.AddFile(downloads+"/x.bin", []byte("x"))
	fsmgr.AddFile(downloads+"/y.bin", []byte("x"))

	layout := tidy.Layout{
		WatchDirs:     []string{downloads},
		OutputRoot:    outRoot,
		DuplicatesDir: "Dupes",
		Folders:       map[tidy.Category]string{tidy.CategoryCode: "Dev", tidy.CategoryMisc: "/elsewhere/Other"},
	}
	org := tidy.NewOrganizer(store, fsmgr, layout, tidy.NewNopLogger(), testutil.FixedClock())
	if _, err := org.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	for _, p := range []string{
		outRoot + "/Dev/main.go.txt",
		"/elsewhere/Other/x.bin",
		outRoot + "/Dupes/y_duplicate_20240301_143052.bin",
	} {
		if _, ok := fsmgr.Content(p); !ok {
			t.Errorf("%s missing", p)
		}
	}
}

func TestOrganizer_Scan_CustomFolderInsideWatchDir(t *testing.T) {
	store := testutil.NewTestDatabase(t)
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile(downloads+"/x.bin", []byte("x"))

	layout := tidy.Layout{
		WatchDirs:  []string{downloads},
		OutputRoot: outRoot,
		Folders:    map[tidy.Category]string{tidy.CategoryMisc: downloads + "/Sorted"},
	}
	org := tidy.NewOrganizer(store, fsmgr, layout, tidy.NewNopLogger(), testutil.FixedClock())

	first, err := org.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if first.Moved != 1 {
		t.Fatalf("first scan moved %d, want 1", first.Moved)
	}

	// The filed copy sits in a watch dir but must not be re-filed as a
	// duplicate of itself.
	out := org.OrganizeFile(downloads + "/Sorted/x.bin")
	if out.Action != tidy.ActionIgnored || out.Reason != "already organized" {
		t.Errorf("OrganizeFile(filed copy) = %s (%s), want ignored as already organized", out.Action, out.Reason)
	}
	second, err := org.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if second.Processed != 0 || second.Duplicates != 0 {
		t.Errorf("second scan = %+v, want nothing processed", second)
	}
	if _, ok := fsmgr.Content(downloads + "/Sorted/x.bin"); !ok {
		t.Error("filed copy was moved again")
	}
}

func TestOrganizer_Scan_Cancelled(t *testing.T) {
	f := newFixture(t, nil)
	f.fs.AddFile(downloads+"/a.txt", []byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := f.org.Scan(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Scan() error = %v, want context.Canceled", err)
	}
	if summary == nil || summary.Processed != 0 {
		t.Errorf("summary = %+v, want empty partial summary", summary)
	}
	f.mustExist(t, downloads+"/a.txt", "a")
}

func TestOrganizer_OrganizeFile(t *testing.T) {
	t.Run("single file", func(t *testing.T) {
		f := newFixture(t, nil)
		f.fs.AddFile(downloads+"/notes.md", []byte("# notes"))

		out := f.org.OrganizeFile(downloads + "/notes.md")

		if out.Action != tidy.ActionMoved || out.Category != tidy.CategoryCode {
			t.Errorf("outcome = %+v", out)
		}
		if out.Destination != outRoot+"/Documents/Code/notes.md" {
			t.Errorf("Destination = %q", out.Destination)
		}
		if out.Hash != testutil.SHA256Hex([]byte("# notes")) {
			t.Errorf("Hash = %q", out.Hash)
		}
	})

	t.Run("directory is ignored", func(t *testing.T) {
		f := newFixture(t, nil)
		out := f.org.OrganizeFile(downloads)
		if out.Action != tidy.ActionIgnored {
			t.Errorf("Action = %s, want ignored", out.Action)
		}
	})

	t.Run("vanished file is skipped", func(t *testing.T) {
		f := newFixture(t, nil)
		out := f.org.OrganizeFile(downloads + "/gone.txt")
		if out.Action != tidy.ActionSkipped || out.Err == nil {
			t.Errorf("outcome = %+v, want skipped with error", out)
		}
	})
}

func TestOrganizer_RecordedHashMatchesContent(t *testing.T) {
	f := newFixture(t, nil)
	contents := map[string]string{
		"one.csv":  "a,b\n1,2\n",
		"two.zip":  "PK\x03\x04",
		"three.js": "const x = 1",
	}
	for name, c := range contents {
		f.fs.AddFile(downloads+"/"+name, []byte(c))
	}

	summary := f.scan(t)

	for _, o := range summary.Outcomes {
		if o.Action != tidy.ActionMoved {
			t.Fatalf("outcome = %+v, want moved", o)
		}
		got, _ := f.fs.Content(o.Destination)
		rec, err := f.store.Lookup(testutil.SHA256Hex(got))
		if err != nil || rec == nil {
			t.Fatalf("Lookup(%s) = %v, %v", o.Destination, rec, err)
		}
		if rec.OriginalPath != o.Destination {
			t.Errorf("record path = %q, want %q", rec.OriginalPath, o.Destination)
		}
	}
}

// recordingStore checks that every upsert is preceded by a miss for the same hash.
type recordingStore struct {
	inner  tidy.HashStore
	misses map[string]bool
	t      *testing.T
}

func (s *recordingStore) Lookup(hash string) (*model.HashRecord, error) {
	rec, err := s.inner.Lookup(hash)
	if rec == nil && err == nil {
		s.misses[hash] = true
	}
	return rec, err
}

func (s *recordingStore) Upsert(rec *model.HashRecord) error {
	if !s.misses[rec.ContentHash] {
		s.t.Errorf("Upsert(%s) without a preceding miss", rec.ContentHash)
	}
	delete(s.misses, rec.ContentHash)
	return s.inner.Upsert(rec)
}

func TestOrganizer_UpsertOnlyAfterMiss(t *testing.T) {
	store := &recordingStore{inner: testutil.NewTestDatabase(t), misses: map[string]bool{}, t: t}
	f := newFixture(t, store)
	f.fs.AddFile(downloads+"/a.txt", []byte("x"))
	f.fs.AddFile(downloads+"/b.txt", []byte("x"))
	f.fs.AddFile(desktop+"/c.txt", []byte("y"))

	summary := f.scan(t)
	if summary.Moved != 2 || summary.Duplicates != 1 {
		t.Errorf("summary = %+v, want moved 2, duplicates 1", summary)
	}
}
