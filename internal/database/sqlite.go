package database

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tidy-go/internal/database/migrations"
	"tidy-go/internal/model"
	"tidy-go/internal/tidy"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Schema is the full schema produced by the migrations, for tests that
// want a ready database without running golang-migrate.
//
//go:embed schema.sql
var Schema string

// MemoryPath is the path for an in-memory database.
const MemoryPath = ":memory:"

// SQLiteDatabase implements tidy.Database using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens (creating if needed) the store at path and
// migrates it to the latest schema. Any failure is a *tidy.StorageError.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, &tidy.StorageError{Op: "open", Err: fmt.Errorf("creating data directory: %w", err)}
		}
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, &tidy.StorageError{Op: "open", Err: err}
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, &tidy.StorageError{Op: "migrate", Err: err}
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		db.Close()
		return nil, &tidy.StorageError{Op: "migrate", Err: err}
	}

	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the schema exists.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection.
// path can be a file path or ":memory:" for an in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to :memory: is a separate database.
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Fail early on files that are not SQLite databases.
	if _, err := db.Exec("SELECT count(*) FROM sqlite_master"); err != nil {
		db.Close()
		return nil, fmt.Errorf("database file is unreadable: %w", err)
	}

	return db, nil
}

// Hash records

const recordColumns = "file_hash, original_path, filename, organized_at, file_size"

func (s *SQLiteDatabase) Lookup(hash string) (*model.HashRecord, error) {
	row := s.db.QueryRow("SELECT "+recordColumns+" FROM file_hashes WHERE file_hash = ?", hash)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &tidy.StorageError{Op: "lookup", Err: err}
	}
	return rec, nil
}

// Upsert inserts record, replacing any existing row for the same hash.
func (s *SQLiteDatabase) Upsert(record *model.HashRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO file_hashes (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(file_hash) DO UPDATE SET
			original_path = excluded.original_path,
			filename = excluded.filename,
			organized_at = excluded.organized_at,
			file_size = excluded.file_size`,
		record.ContentHash,
		record.OriginalPath,
		record.Filename,
		record.OrganizedAt.UTC(),
		record.SizeBytes,
	)
	if err != nil {
		return &tidy.StorageError{Op: "upsert", Err: err}
	}
	return nil
}

func (s *SQLiteDatabase) CountRecords() (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT count(*) FROM file_hashes").Scan(&n); err != nil {
		return 0, &tidy.StorageError{Op: "count", Err: err}
	}
	return n, nil
}

func (s *SQLiteDatabase) ListRecords(limit int) ([]*model.HashRecord, error) {
	rows, err := s.db.Query("SELECT "+recordColumns+" FROM file_hashes ORDER BY organized_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, &tidy.StorageError{Op: "list", Err: err}
	}
	defer rows.Close()

	var result []*model.HashRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &tidy.StorageError{Op: "list", Err: err}
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &tidy.StorageError{Op: "list", Err: err}
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*model.HashRecord, error) {
	var rec model.HashRecord
	if err := row.Scan(&rec.ContentHash, &rec.OriginalPath, &rec.Filename, &rec.OrganizedAt, &rec.SizeBytes); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Scan run tracking

const runColumns = "id, operation, started_at, finished_at, status, processed, moved, duplicates, skipped"

func (s *SQLiteDatabase) CreateScanRun(operation string) (*model.ScanRun, error) {
	startedAt := time.Now().UTC()
	res, err := s.db.Exec("INSERT INTO scan_runs (operation, started_at, status) VALUES (?, ?, 'running')", operation, startedAt)
	if err != nil {
		return nil, fmt.Errorf("creating scan run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading scan run id: %w", err)
	}
	return &model.ScanRun{ID: id, Operation: operation, StartedAt: startedAt, Status: "running"}, nil
}

func (s *SQLiteDatabase) FinishScanRun(run *model.ScanRun) error {
	if !run.FinishedAt.Valid {
		run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}
	_, err := s.db.Exec(`
		UPDATE scan_runs
		SET finished_at = ?, status = ?, processed = ?, moved = ?, duplicates = ?, skipped = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.Processed, run.Moved, run.Duplicates, run.Skipped, run.ID,
	)
	if err != nil {
		return fmt.Errorf("finishing scan run: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListScanRuns(limit int) ([]*model.ScanRun, error) {
	rows, err := s.db.Query("SELECT "+runColumns+" FROM scan_runs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing scan runs: %w", err)
	}
	defer rows.Close()

	var result []*model.ScanRun
	for rows.Next() {
		var r model.ScanRun
		if err := rows.Scan(&r.ID, &r.Operation, &r.StartedAt, &r.FinishedAt, &r.Status,
			&r.Processed, &r.Moved, &r.Duplicates, &r.Skipped); err != nil {
			return nil, fmt.Errorf("scanning scan run: %w", err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing scan runs: %w", err)
	}
	return result, nil
}

func (s *SQLiteDatabase) MaxScanRunID() (int64, error) {
	var id int64
	if err := s.db.QueryRow("SELECT COALESCE(MAX(id), 0) FROM scan_runs").Scan(&id); err != nil {
		return 0, fmt.Errorf("getting max scan run ID: %w", err)
	}
	return id, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// SchemaVersion reports the migration version of the open database.
func (s *SQLiteDatabase) SchemaVersion() (uint, error) {
	v, _, err := migrations.Version(s.db)
	return v, err
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
// destPath must not exist.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return &tidy.StorageError{Op: "backup", Err: err}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements tidy.Database interface
var _ tidy.Database = (*SQLiteDatabase)(nil)
