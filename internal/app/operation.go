package app

import (
	"tidy-go/internal/model"
	"tidy-go/internal/tidy"
)

// Operation names recorded in scan_runs.
const (
	OpScan         = "Scan"
	OpWatch        = "Watch"
	OpLookup       = "Lookup"
	OpRecords      = "Records"
	OpHistory      = "History"
	OpStoreBackup  = "StoreBackup"
	OpStoreRestore = "StoreRestore"
	OpStoreInfo    = "StoreInfo"
)

// ScanOperation tracks a CLI operation that may mutate the hash store.
// Operations are created in memory with ID=0. Only mutating commands
// persist them, which gives them an auto-increment ID from the database.
type ScanOperation struct {
	ID        int64
	Operation string
	Status    string // "success" or "error"

	Processed  int64
	Moved      int64
	Duplicates int64
	Skipped    int64

	run *model.ScanRun
}

// NewScanOperation creates a new in-memory operation.
func NewScanOperation(operation string) *ScanOperation {
	return &ScanOperation{
		Operation: operation,
		Status:    "success",
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *ScanOperation) Persisted() bool {
	return op.ID != 0
}

// Record adds the counts of a finished batch.
func (op *ScanOperation) Record(s *tidy.Summary) {
	if s == nil {
		return
	}
	op.Processed += int64(s.Processed)
	op.Moved += int64(s.Moved)
	op.Duplicates += int64(s.Duplicates)
	op.Skipped += int64(s.Skipped)
}

// Fail marks the operation as failed.
func (op *ScanOperation) Fail() {
	op.Status = "error"
}

// ScanRun returns the row to store when the operation finishes.
func (op *ScanOperation) ScanRun() *model.ScanRun {
	run := &model.ScanRun{}
	if op.run != nil {
		*run = *op.run
	}
	run.ID = op.ID
	run.Operation = op.Operation
	run.Status = op.Status
	run.Processed = op.Processed
	run.Moved = op.Moved
	run.Duplicates = op.Duplicates
	run.Skipped = op.Skipped
	return run
}
