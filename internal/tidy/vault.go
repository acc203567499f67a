package tidy

import "io"

// Vault stores off-host copies of the hash store.
// All operations use io.Reader/io.Writer for streaming.
type Vault interface {
	// Name returns the configured vault name.
	Name() string

	// PutMetadata stores a named item for a specific host.
	// size is the number of bytes that will be read from r.
	// version is stored alongside the item for consistency checks.
	PutMetadata(hostID string, name string, r io.Reader, size int64, version int64) error

	// GetMetadata retrieves a named item for a specific host and writes it to w.
	// Returns an error wrapping ErrSnapshotNotFound if nothing is stored.
	GetMetadata(hostID string, name string, w io.Writer) error

	// GetMetadataVersion returns the version of a named item on a host.
	// Returns 0 if nothing has been stored for this host/name.
	GetMetadataVersion(hostID string, name string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
