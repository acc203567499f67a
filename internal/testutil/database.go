package testutil

import (
	"testing"

	"tidy-go/internal/database"
	"tidy-go/internal/model"
	"tidy-go/internal/tidy"
)

// NewTestDatabase creates a new in-memory SQLite database with schema applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	sqlDB, err := database.OpenConnection(database.MemoryPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(sqlDB)
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// FailingStore is a HashStore whose calls fail with the configured errors.
// A nil error falls through to Inner, when set.
type FailingStore struct {
	Inner     tidy.HashStore
	LookupErr error
	UpsertErr error

	Upserts int
}

func (s *FailingStore) Lookup(hash string) (*model.HashRecord, error) {
	if s.LookupErr != nil {
		return nil, s.LookupErr
	}
	if s.Inner == nil {
		return nil, nil
	}
	return s.Inner.Lookup(hash)
}

func (s *FailingStore) Upsert(rec *model.HashRecord) error {
	s.Upserts++
	if s.UpsertErr != nil {
		return s.UpsertErr
	}
	if s.Inner == nil {
		return nil
	}
	return s.Inner.Upsert(rec)
}

var _ tidy.HashStore = (*FailingStore)(nil)
