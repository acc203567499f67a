//go:build !unix

package fs

// isCrossDevice always reports false; other platforms surface the link error.
func isCrossDevice(error) bool {
	return false
}

// linkUnsupported treats every link failure as unsupported so the move
// falls back to an exclusive copy.
func linkUnsupported(error) bool {
	return true
}
