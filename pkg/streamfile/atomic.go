package streamfile

import (
	"context"
	"errors"
	"fmt"

	"github.com/calvinalkan/streamfile/pkg/fs"
)

// WithOutputAtomic runs fn on a stream writing to a temp file next to path,
// and replaces path with it only if every step succeeds.
//
// The temp file is named ".<base>.tmp-<uuid>" and created exclusively with
// the configured permission. On success the close step is flush, fsync,
// close; the temp file is then renamed over path and the directory is
// synced. Rename and directory sync failures are returned as [*Error] with
// [OpCommit]; a directory sync failure also matches [fs.ErrDirSync] and
// means path already holds the new content.
//
// On any failure before the rename, path is left untouched and the temp
// file is removed. Close-failure precedence is the same as for
// [WithOutputExt].
func WithOutputAtomic[T any](ctx context.Context, path string, buf Buffering, fn OutputFunc[T], opts ...Option) (T, error) {
	o := applyOptions(opts)

	var tmpPath string

	open := func() (fs.File, error) {
		f, p, err := fs.CreateTemp(o.fs, path, o.perm)
		if err != nil {
			return nil, err
		}

		tmpPath = p

		return f, nil
	}

	finish := func(f fs.File, failed bool, flush func() error) error {
		if failed {
			closeErr := f.Close()
			o.removeTemp(tmpPath)

			return closeErr
		}

		err := flushSyncClose(f, flush)
		if err != nil {
			o.removeTemp(tmpPath)

			return err
		}

		err = o.fs.Rename(tmpPath, path)
		if err != nil {
			o.removeTemp(tmpPath)

			return &Error{Op: OpCommit, Path: path, Err: fmt.Errorf("rename: %w", err)}
		}

		err = fs.SyncDir(o.fs, path)
		if err != nil {
			return &Error{Op: OpCommit, Path: path, Err: err}
		}

		o.logger.Debug("streamfile: committed", "path", path, "temp", tmpPath)

		return nil
	}

	return runOutput(ctx, &o, path, buf, fn, open, finish)
}

// flushSyncClose always closes f, joining every failure.
func flushSyncClose(f fs.File, flush func() error) error {
	err := flush()
	if err == nil {
		err = f.Sync()
		if err != nil {
			err = fmt.Errorf("sync: %w", err)
		}
	}

	return errors.Join(err, f.Close())
}

func (o *options) removeTemp(tmpPath string) {
	err := fs.RemoveTemp(o.fs, tmpPath)
	if err != nil {
		o.logger.Warn("streamfile: temp file left behind", "temp", tmpPath, "error", err)
	}
}
