package tidy

import "tidy-go/internal/model"

// HashStore is the durable mapping from content hash to HashRecord.
type HashStore interface {
	// Lookup returns the record for hash, or nil when the hash has never
	// been filed. It has no side effects.
	Lookup(hash string) (*model.HashRecord, error)

	// Upsert records that record.ContentHash maps to record.
	// If the hash already exists the new record replaces it (last write wins).
	// Callers only upsert hashes that just missed Lookup, so in normal
	// operation each hash is written once.
	Upsert(record *model.HashRecord) error
}

// Database is the full persistent state used by the application layer:
// the hash store plus scan-run bookkeeping.
type Database interface {
	HashStore

	// CountRecords returns the number of distinct hashes filed.
	CountRecords() (int64, error)

	// ListRecords returns the most recently filed records, newest first.
	ListRecords(limit int) ([]*model.HashRecord, error)

	// CreateScanRun inserts a new run in the "running" state.
	CreateScanRun(operation string) (*model.ScanRun, error)

	// FinishScanRun stores the final counts and status of run.
	FinishScanRun(run *model.ScanRun) error

	// ListScanRuns returns the most recent runs, newest first.
	ListScanRuns(limit int) ([]*model.ScanRun, error)

	// MaxScanRunID returns the highest run ID, or 0 when none exist.
	MaxScanRunID() (int64, error)

	// BackupTo writes a consistent copy of the store to destPath.
	BackupTo(destPath string) error

	// Close closes the database connection.
	Close() error
}

// UnavailableStore stands in for a hash store that could not be opened.
// Every call fails with ErrStorageUnavailable; the Organizer then treats
// each lookup as a miss, so duplicate detection degrades to "none found".
type UnavailableStore struct {
	Cause error
}

func (s *UnavailableStore) Lookup(string) (*model.HashRecord, error) {
	return nil, &StorageError{Op: "lookup", Err: s.err()}
}

func (s *UnavailableStore) Upsert(*model.HashRecord) error {
	return &StorageError{Op: "upsert", Err: s.err()}
}

func (s *UnavailableStore) err() error {
	if s.Cause == nil {
		return ErrStorageUnavailable
	}
	return &unavailableError{cause: s.Cause}
}

type unavailableError struct{ cause error }

func (e *unavailableError) Error() string {
	return ErrStorageUnavailable.Error() + ": " + e.cause.Error()
}

func (e *unavailableError) Unwrap() []error { return []error{ErrStorageUnavailable, e.cause} }
