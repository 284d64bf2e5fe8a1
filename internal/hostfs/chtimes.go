package hostfs

import (
	"os"
	"time"
)

// chtimes wraps os.Chtimes, isolated in its own file so the only direct
// syscall-adjacent dependency in this package is easy to spot.
func chtimes(path string, atime, mtime time.Time) error {
	return os.Chtimes(path, atime, mtime)
}
