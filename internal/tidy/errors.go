package tidy

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable is returned by a hash store that could not be opened.
	ErrStorageUnavailable = errors.New("hash store unavailable")

	// ErrDestinationExists is returned by FilesystemManager.Move when the
	// destination is already taken. Move never overwrites.
	ErrDestinationExists = errors.New("destination already exists")

	// ErrSnapshotNotFound is returned by a Vault that holds no item under
	// the requested host and name.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrOutputRoot means the managed output tree could not be created.
	// It is the only error that aborts a whole scan.
	ErrOutputRoot = errors.New("output root cannot be created")
)

// StorageError wraps a failure of the persistent hash store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("hash store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err came from the hash store.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se) || errors.Is(err, ErrStorageUnavailable)
}
