package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"tidy-go/internal/config"
	"tidy-go/internal/database"
	"tidy-go/internal/encryption"
	"tidy-go/internal/fs"
	"tidy-go/internal/model"
	"tidy-go/internal/notify"
	"tidy-go/internal/tidy"
	"tidy-go/internal/vault"
	"tidy-go/internal/watch"
)

// NotificationTitle is the title of the end-of-batch notification.
const NotificationTitle = "Smart Organizer"

// ErrStoreBehind is returned by BackupStore when the vault holds a newer
// snapshot than the local hash store.
var ErrStoreBehind = errors.New("local hash store is behind vault snapshot")

// TidyApp is the application layer between the CLI and the Organizer.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string paths, and manages the store lifecycle on Close.
type TidyApp struct {
	cfg       *config.Config
	db        tidy.Database // nil when the store could not be opened
	storeErr  error
	vault     tidy.Vault // nil when no vault is configured
	fsmgr     tidy.FilesystemManager
	encryptor tidy.Encryptor
	notifier  tidy.Notifier
	organizer *tidy.Organizer
	logger    tidy.Logger
	op        *ScanOperation
	logFile   *os.File
	uploaded  bool
	behind    bool // vault snapshot is newer than the local store; uploads are blocked
}

// Options overrides collaborators built from config. Zero fields use the
// config-driven defaults.
type Options struct {
	Stderr   io.Writer
	Notifier tidy.Notifier
	Clock    tidy.Clock
}

// NewTidyApp creates a fully wired TidyApp from the given config.
// operation identifies the CLI command being run (e.g. OpScan, OpLookup).
// The caller must call Close when done.
func NewTidyApp(cfg *config.Config, operation string) (*TidyApp, error) {
	return NewTidyAppWithOptions(cfg, operation, Options{})
}

// NewTidyAppWithOptions is NewTidyApp with collaborator overrides.
func NewTidyAppWithOptions(cfg *config.Config, operation string, opts Options) (*TidyApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	layout, err := layoutFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = tidy.RealClock{}
	}

	runID := opts.Clock.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, runID, opts.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a := &TidyApp{
		cfg:     cfg,
		fsmgr:   fs.NewOSFilesystemManager(cfg.Filesystem.Ignore),
		logger:  logger,
		op:      NewScanOperation(operation),
		logFile: logFile,
	}

	// A store that cannot be opened degrades duplicate detection instead
	// of stopping the organizer.
	var store tidy.HashStore
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		logger.Error("hash store unavailable, duplicates will not be detected", "error", err)
		a.storeErr = err
		store = &tidy.UnavailableStore{Cause: err}
	} else {
		a.db = db
		store = db
	}

	if len(cfg.Vaults) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		v, err := vault.NewVaultFromConfig(ctx, cfg.Vaults[0])
		cancel()
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("creating vault: %w", err)
		}
		a.vault = v
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	a.encryptor = enc

	if opts.Notifier != nil {
		a.notifier = opts.Notifier
	} else {
		n, err := notify.NewNotifierFromConfig(cfg.Notify)
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("creating notifier: %w", err)
		}
		a.notifier = n
	}

	if operation != OpStoreRestore {
		if err := a.checkSnapshotVersion(); err != nil {
			a.closeResources()
			return nil, err
		}
	}

	a.organizer = tidy.NewOrganizer(store, a.fsmgr, layout, logger, opts.Clock)
	return a, nil
}

// layoutFromConfig maps the [organizer] section onto a tidy.Layout.
func layoutFromConfig(cfg *config.Config) (tidy.Layout, error) {
	layout := tidy.Layout{
		WatchDirs:     cfg.WatchDirs,
		OutputRoot:    cfg.Organizer.OutputRoot,
		DuplicatesDir: cfg.Organizer.DuplicatesDir,
	}
	if len(cfg.Organizer.Folders) == 0 {
		return layout, nil
	}

	known := make(map[tidy.Category]bool, len(tidy.Categories))
	for _, c := range tidy.Categories {
		known[c] = true
	}
	layout.Folders = make(map[tidy.Category]string, len(cfg.Organizer.Folders))
	for name, dir := range cfg.Organizer.Folders {
		c := tidy.Category(name)
		if !known[c] {
			return tidy.Layout{}, fmt.Errorf("unknown category in organizer.folders: %s", name)
		}
		layout.Folders[c] = dir
	}
	for _, wd := range layout.WatchDirs {
		if layout.Contains(wd) {
			return tidy.Layout{}, fmt.Errorf("watch dir %s is inside a folder files are organized into", wd)
		}
	}
	return layout, nil
}

// checkSnapshotVersion compares the local store with the last snapshot
// uploaded to the vault. A store that is behind (for example deleted and
// recreated) still organizes files, but its snapshots are never uploaded
// over the newer one. An unreachable vault is only logged.
func (a *TidyApp) checkSnapshotVersion() error {
	if a.vault == nil || a.db == nil {
		return nil
	}
	remote, err := a.vault.GetMetadataVersion(a.cfg.HostID, SnapshotName)
	if err != nil {
		a.logger.Warn("cannot check vault snapshot version", "vault", a.vault.Name(), "error", err)
		return nil
	}
	local, err := a.db.MaxScanRunID()
	if err != nil {
		return fmt.Errorf("checking local store version: %w", err)
	}
	if remote > local {
		a.behind = true
		a.logger.Warn("local hash store is behind vault snapshot, run `tidy store restore`",
			"local", local, "remote", remote, "vault", a.vault.Name())
	}
	return nil
}

// StoreBehind reports whether the vault holds a newer snapshot than the
// local store.
func (a *TidyApp) StoreBehind() bool {
	return a.behind
}

// persistOperation saves the operation as a scan run, giving it an ID.
// This should only be called for store-mutating commands. Without a store
// the operation stays in memory.
func (a *TidyApp) persistOperation() error {
	if a.op.Persisted() || a.db == nil {
		return nil
	}
	run, err := a.db.CreateScanRun(a.op.Operation)
	if err != nil {
		return fmt.Errorf("persisting scan run: %w", err)
	}
	a.op.ID = run.ID
	a.op.run = run
	return nil
}

// StoreError returns why the hash store could not be opened, or nil.
func (a *TidyApp) StoreError() error {
	return a.storeErr
}

// Layout returns the organizer's layout.
func (a *TidyApp) Layout() tidy.Layout {
	return a.organizer.Layout()
}

// Scan runs one organizing pass over the watch folders and notifies the
// user of the result.
func (a *TidyApp) Scan(ctx context.Context) (*tidy.Summary, error) {
	if err := a.persistOperation(); err != nil {
		return nil, err
	}
	summary, err := a.organizer.Scan(ctx)
	a.op.Record(summary)
	if err != nil {
		a.op.Fail()
		return summary, err
	}
	a.notify(ctx, summary)
	return summary, nil
}

// Watch runs an initial scan, then organizes files as they arrive until
// ctx is done. onOutcome, when set, sees every handled file.
func (a *TidyApp) Watch(ctx context.Context, settle time.Duration, onOutcome func(*tidy.Outcome)) error {
	if _, err := a.Scan(ctx); err != nil {
		return err
	}

	handle := func(path string) {
		out := a.organizer.OrganizeFile(path)
		if onOutcome != nil {
			onOutcome(out)
		}
		if out.Action == tidy.ActionIgnored {
			return
		}
		s := &tidy.Summary{}
		s.Add(out)
		a.op.Record(s)
		a.notify(ctx, s)
	}

	w := watch.New(a.cfg.WatchDirs, settle, handle, a.logger)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.op.Fail()
		return fmt.Errorf("watching folders: %w", err)
	}
	return nil
}

func (a *TidyApp) notify(ctx context.Context, s *tidy.Summary) {
	if s.Processed == 0 {
		return
	}
	if err := a.notifier.Notify(ctx, NotificationTitle, s.Message()); err != nil {
		a.logger.Warn("notification failed", "error", err)
	}
}

// LookupResult is the store entry for a file's content, if any.
type LookupResult struct {
	Path   string
	Hash   string
	Size   int64
	Record *model.HashRecord // nil when the content has never been filed
}

// Lookup hashes the file at rawPath and reports where its content was filed.
func (a *TidyApp) Lookup(rawPath string) (*LookupResult, error) {
	if a.db == nil {
		return nil, &tidy.StorageError{Op: "lookup", Err: a.storeErr}
	}
	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if p.IsDir() {
		return nil, fmt.Errorf("%s is a directory", p.String())
	}

	r, err := a.fsmgr.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer r.Close()

	hash, size, err := tidy.HashFile(r)
	if err != nil {
		return nil, err
	}
	rec, err := a.db.Lookup(hash)
	if err != nil {
		return nil, err
	}
	return &LookupResult{Path: p.String(), Hash: hash, Size: size, Record: rec}, nil
}

// Records returns the most recently filed records.
func (a *TidyApp) Records(limit int) ([]*model.HashRecord, error) {
	if a.db == nil {
		return nil, &tidy.StorageError{Op: "list", Err: a.storeErr}
	}
	return a.db.ListRecords(limit)
}

// History returns the most recent scan runs.
func (a *TidyApp) History(limit int) ([]*model.ScanRun, error) {
	if a.db == nil {
		return nil, &tidy.StorageError{Op: "history", Err: a.storeErr}
	}
	return a.db.ListScanRuns(limit)
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the scan run, snapshots the store, and
// uploads the snapshot to the vault. Otherwise it just closes the store.
func (a *TidyApp) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.db != nil && a.op.Persisted() {
		run := a.op.ScanRun()
		if err := a.db.FinishScanRun(run); err != nil {
			keep(fmt.Errorf("finishing scan run: %w", err))
		}
		if a.vault != nil && !a.uploaded && !a.behind {
			keep(a.uploadSnapshot(a.op.ID))
		}
	}

	keep(a.closeResources())
	return firstErr
}

func (a *TidyApp) closeResources() error {
	var err error
	if a.db != nil {
		if cerr := a.db.Close(); cerr != nil {
			err = fmt.Errorf("closing database: %w", cerr)
		}
		a.db = nil
	}
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
	return err
}

// storePath returns the on-disk path of the hash store.
func (a *TidyApp) storePath() (string, error) {
	if a.cfg.Database.Type == "memory" {
		return "", fmt.Errorf("in-memory hash store has no file")
	}
	if a.cfg.Database.DataDir == "" {
		return "", fmt.Errorf("database.data_dir is not set")
	}
	return filepath.Join(a.cfg.Database.DataDir, database.DatabaseFileName), nil
}
