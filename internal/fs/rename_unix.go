//go:build unix

package fs

import (
	"errors"
	"syscall"
)

// isCrossDevice reports whether a rename or link failed because source and
// destination are on different filesystems.
func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

// linkUnsupported reports whether the destination filesystem cannot hold
// hard links, as with FAT or some network mounts.
func linkUnsupported(err error) bool {
	return errors.Is(err, syscall.EPERM) ||
		errors.Is(err, syscall.ENOTSUP) ||
		errors.Is(err, syscall.EOPNOTSUPP) ||
		errors.Is(err, syscall.EMLINK) ||
		errors.Is(err, syscall.ENOSYS)
}
