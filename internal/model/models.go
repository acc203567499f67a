package model

import (
	"database/sql"
	"time"
)

// HashRecord is the canonical location of a piece of content.
// ContentHash is the SHA-256 checksum of the file bytes and is unique
// across the store.
type HashRecord struct {
	ContentHash  string    // SHA-256 checksum (hex)
	OriginalPath string    // Absolute path the file was moved to on first sighting
	Filename     string    // Base name at time of filing (display only)
	OrganizedAt  time.Time // When the content was first filed
	SizeBytes    int64     // Size at time of filing
}

// ScanRun records one mutating CLI invocation (scan, watch, ...).
type ScanRun struct {
	ID         int64
	Operation  string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string // "running", "success" or "error"
	Processed  int64
	Moved      int64
	Duplicates int64
	Skipped    int64
}
