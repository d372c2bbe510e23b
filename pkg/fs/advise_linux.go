//go:build linux && !android

package fs

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// AdviseSequential tells the kernel that f will be read sequentially from
// offset to the end, which widens read-ahead for the handle.
//
// The call is a hint. It never changes what reads return, so callers log a
// failure and carry on.
func AdviseSequential(f File, offset int64) error {
	if f == nil {
		return errors.New("advise: nil file")
	}

	err := unix.Fadvise(int(f.Fd()), offset, 0, unix.FADV_SEQUENTIAL)
	if err != nil {
		return fmt.Errorf("fadvise sequential: %w", err)
	}

	return nil
}
