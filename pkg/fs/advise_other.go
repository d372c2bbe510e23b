//go:build !linux || android

package fs

// AdviseSequential is a no-op on platforms without posix_fadvise support
// wired up.
func AdviseSequential(File, int64) error {
	return nil
}
