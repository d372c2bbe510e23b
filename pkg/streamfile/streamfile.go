// Package streamfile runs a computation against a file through a byte-chunk
// stream and guarantees the file handle is closed exactly once, whatever
// the computation does.
//
// Every call follows the same lifecycle:
//
//	open -> (seek | configure)? -> attach stream -> fn -> close
//
// The close step runs after fn returns, fails, panics, or is cancelled, and
// always before the call returns. If the close step fails, its [*Error] is
// returned even when an earlier step or fn also failed; the earlier failure
// is kept in [Error.Suppressed] and logged. This only applies to error
// returns: if fn panics, the handle is still closed but the panic propagates
// unchanged and a close failure is only logged.
//
// Streams must not escape fn: once the call returns, the handle behind them
// is closed.
//
// Example:
//
//	n, err := streamfile.WithInputAt(ctx, 128, "data.bin",
//	    func(in *streams.InputStream[[]byte]) (int, error) {
//	        b, err := streams.ReadBytes(in)
//	        return len(b), err
//	    })
package streamfile

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/calvinalkan/streamfile/pkg/fs"
	"github.com/calvinalkan/streamfile/pkg/streams"
)

// InputFunc consumes an input stream and produces a result.
type InputFunc[T any] func(in *streams.InputStream[[]byte]) (T, error)

// OutputFunc feeds an output stream and produces a result.
type OutputFunc[T any] func(out *streams.OutputStream[[]byte]) (T, error)

// WithInput opens path for reading and runs fn on a stream starting at the
// first byte. Same as WithInputAt with offset 0.
func WithInput[T any](ctx context.Context, path string, fn InputFunc[T], opts ...Option) (T, error) {
	return withInput(ctx, 0, path, fn, false, opts)
}

// WithInputAt opens path for reading, positions the handle at offset, and
// runs fn on a stream of freshly allocated chunks.
//
// An offset of 0 issues no seek. Any other offset is passed unchanged to a
// single Seek(offset, io.SeekStart); a negative offset fails there, an offset
// past the end yields an empty stream.
func WithInputAt[T any](ctx context.Context, offset int64, path string, fn InputFunc[T], opts ...Option) (T, error) {
	return withInput(ctx, offset, path, fn, false, opts)
}

// WithInputAtReusingBuffer is [WithInputAt] with one difference: every chunk
// aliases a single buffer allocated for this call. A chunk is only valid
// until the next Read on the stream; fn must copy anything it keeps.
func WithInputAtReusingBuffer[T any](ctx context.Context, offset int64, path string, fn InputFunc[T], opts ...Option) (T, error) {
	return withInput(ctx, offset, path, fn, true, opts)
}

// WithOutput opens path for writing, creating or truncating it, and runs fn
// on an unbuffered stream. Same as WithOutputExt with [WriteMode] and
// [NoBuffering].
func WithOutput[T any](ctx context.Context, path string, fn OutputFunc[T], opts ...Option) (T, error) {
	return WithOutputExt(ctx, path, WriteMode, NoBuffering(), fn, opts...)
}

// WithOutputExt opens path per mode, applies buf to the handle, and runs fn
// on a stream writing through it.
//
// An invalid buf fails the configure step before the stream exists; the
// handle is still closed. Closing the stream inside fn flushes; the close
// step flushes whatever is left and then closes the handle.
func WithOutputExt[T any](ctx context.Context, path string, mode Mode, buf Buffering, fn OutputFunc[T], opts ...Option) (T, error) {
	o := applyOptions(opts)

	flag, ok := mode.flags()
	if !ok {
		var zero T

		return zero, &Error{Op: OpOpen, Path: path, Err: ErrInvalidMode}
	}

	open := func() (fs.File, error) {
		return o.fs.OpenFile(path, flag, o.perm)
	}

	return runOutput(ctx, &o, path, buf, fn, open, closeFlushing)
}

func withInput[T any](ctx context.Context, offset int64, path string, fn InputFunc[T], reuse bool, opts []Option) (result T, err error) {
	o := applyOptions(opts)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}

	f, openErr := o.fs.OpenFile(path, os.O_RDONLY, 0)
	if openErr != nil {
		return result, &Error{Op: OpOpen, Path: path, Err: openErr}
	}

	o.logger.Debug("streamfile: opened", "path", path, "op", "input", "offset", offset)

	s := scope{o: &o, path: path}
	defer func() {
		err = s.exit(err, func(bool) error { return f.Close() })
	}()

	if offset != 0 {
		_, seekErr := f.Seek(offset, io.SeekStart)
		if seekErr != nil {
			return result, &Error{Op: OpSeek, Path: path, Err: seekErr}
		}

		o.logger.Debug("streamfile: seeked", "path", path, "offset", offset)
	}

	if o.sequential {
		hintErr := fs.AdviseSequential(f, offset)
		if hintErr != nil {
			o.logger.Debug("streamfile: sequential hint failed", "path", path, "error", hintErr)
		}
	}

	r := ctxReader{ctx: ctx, r: f}

	var in *streams.InputStream[[]byte]
	if reuse {
		in = streams.FromReaderReusing(r, make([]byte, o.chunkSize))
	} else {
		in = streams.FromReader(r, o.chunkSize)
	}

	result, err = fn(in)
	s.returned = true

	return result, err
}

// closeStep finishes an output handle. failed is true when the scope is
// exiting because of an error or a panic. flush is never nil.
type closeStep func(f fs.File, failed bool, flush func() error) error

// closeFlushing is the plain output close step: flush pending bytes, then
// close the handle regardless of the flush outcome.
func closeFlushing(f fs.File, _ bool, flush func() error) error {
	flushErr := flush()
	closeErr := f.Close()

	return errors.Join(flushErr, closeErr)
}

// runOutput drives the output lifecycle shared by WithOutputExt and
// WithOutputAtomic.
func runOutput[T any](
	ctx context.Context,
	o *options,
	path string,
	buf Buffering,
	fn OutputFunc[T],
	open func() (fs.File, error),
	finish closeStep,
) (result T, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}

	f, openErr := open()
	if openErr != nil {
		return result, &Error{Op: OpOpen, Path: path, Err: openErr}
	}

	o.logger.Debug("streamfile: opened", "path", path, "op", "output", "buffering", buf.String())

	flush := func() error { return nil }

	s := scope{o: o, path: path}
	defer func() {
		err = s.exit(err, func(failed bool) error {
			return finish(f, failed, flush)
		})
	}()

	w, flushFn, cfgErr := buf.configure(f)
	if cfgErr != nil {
		return result, &Error{Op: OpConfigure, Path: path, Err: cfgErr}
	}

	if flushFn != nil {
		flush = flushFn
	}

	out := streams.ToWriter(ctxWriter{ctx: ctx, w: w, flush: flushFn})

	result, err = fn(out)
	s.returned = true

	return result, err
}

// scope tracks one acquired handle through its close step.
type scope struct {
	o        *options
	path     string
	returned bool
}

// exit runs closeFn exactly once and applies the precedence rule: a close
// failure replaces prior, which is kept only as Suppressed.
//
// If fn panicked, exit still closes the handle. The panic keeps propagating
// and a close failure is only logged.
func (s *scope) exit(prior error, closeFn func(failed bool) error) error {
	panicking := !s.returned && prior == nil

	closeErr := closeFn(prior != nil || panicking)

	if panicking {
		if closeErr != nil {
			s.o.logger.Warn("streamfile: close failed while unwinding", "path", s.path, "error", closeErr)
		}

		return nil
	}

	if closeErr == nil {
		s.o.logger.Debug("streamfile: closed", "path", s.path)

		return prior
	}

	if prior != nil {
		s.o.logger.Warn("streamfile: close failure supersedes earlier error",
			"path", s.path, "close_error", closeErr, "superseded", prior)
	}

	if e, ok := closeErr.(*Error); ok {
		e.Suppressed = prior

		return e
	}

	return &Error{Op: OpClose, Path: s.path, Err: closeErr, Suppressed: prior}
}
