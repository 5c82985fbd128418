//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package initshim

import (
	"fmt"
	"os"
)

// lockFile only opens path on this platform; the spool is not shared
// between processes here.
func lockFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, FileMode)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	return func() { f.Close() }, nil
}
