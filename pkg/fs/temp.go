package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrDirSync indicates the parent directory could not be synced after a
// rename. The renamed file is in place but its directory entry may not be
// durable yet. Detect with errors.Is(err, ErrDirSync).
var ErrDirSync = errors.New("dir sync")

const tempMaxAttempts = 16

// CreateTemp exclusively creates a write-only sibling temp file for path,
// named ".<base>.tmp-<uuid>" in the same directory so a later [FS.Rename]
// stays on one filesystem. Returns the handle and the temp path.
//
// If path already exists as a regular file, its permission bits replace
// perm, so replacing a file keeps its mode (subject to umask).
func CreateTemp(fsys FS, path string, perm os.FileMode) (File, string, error) {
	dir, base := filepath.Split(path)
	if base == "" || base == "." || base == string(os.PathSeparator) {
		return nil, "", fmt.Errorf("path is invalid: %q", path)
	}

	if dir == "" {
		dir = "."
	}

	dir = filepath.Clean(dir)

	info, err := fsys.Stat(path)
	switch {
	case err == nil:
		if info.Mode().IsRegular() {
			perm = info.Mode().Perm()
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, "", fmt.Errorf("stat destination: %w", err)
	}

	for range tempMaxAttempts {
		tmpPath := filepath.Join(dir, "."+base+".tmp-"+uuid.NewString())

		file, err := fsys.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			return file, tmpPath, nil
		}

		if errors.Is(err, os.ErrExist) {
			continue
		}

		return nil, "", fmt.Errorf("create temp file: %w", err)
	}

	return nil, "", fmt.Errorf("exhausted temp file attempts in %q", dir)
}

// RemoveTemp removes a temp file. A missing file is not an error.
func RemoveTemp(fsys FS, tmpPath string) error {
	err := fsys.Remove(tmpPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove temp file %q: %w", tmpPath, err)
	}

	return nil
}

// SyncDir fsyncs the directory containing path. Every returned error
// satisfies errors.Is(err, ErrDirSync).
func SyncDir(fsys FS, path string) error {
	dir := filepath.Dir(path)

	dirFd, err := fsys.Open(dir)
	if err != nil {
		return errors.Join(ErrDirSync, fmt.Errorf("open dir %q: %w", dir, err))
	}

	syncErr := dirFd.Sync()
	closeErr := dirFd.Close()

	if syncErr == nil && closeErr == nil {
		return nil
	}

	if syncErr != nil {
		syncErr = fmt.Errorf("sync dir %q: %w", dir, syncErr)
	}

	if closeErr != nil {
		closeErr = fmt.Errorf("close dir %q: %w", dir, closeErr)
	}

	return errors.Join(ErrDirSync, syncErr, closeErr)
}
