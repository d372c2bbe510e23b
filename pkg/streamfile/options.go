package streamfile

import (
	"log/slog"
	"os"

	"github.com/calvinalkan/streamfile/pkg/fs"
	"github.com/calvinalkan/streamfile/pkg/streams"
)

// DefaultPerm is the create permission for output files, before umask.
const DefaultPerm os.FileMode = 0o666

// Option configures a scoped call.
type Option func(*options)

type options struct {
	fs         fs.FS
	logger     *slog.Logger
	chunkSize  int
	perm       os.FileMode
	sequential bool
}

// WithFS sets the filesystem handles are opened on.
//
// Defaults to [fs.NewReal]. Tests pass an [fs.Chaos] to force open, seek and
// close failures and to count handles. A nil fsys keeps the default.
func WithFS(fsys fs.FS) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithLogger sets the logger for lifecycle events.
//
// Open, seek and close are logged at Debug. An error superseded by a close
// failure is logged at Warn, since it is not reachable from the returned
// error chain. Pass nil to disable logging (the default).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithChunkSize sets the maximum chunk size for input streams.
// Values <= 0 select [streams.DefaultChunkSize].
//
// For [WithInputAtReusingBuffer] this is also the size of the single buffer
// every chunk aliases.
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}

// WithPerm sets the permission used when an output call creates its file.
// Zero keeps [DefaultPerm].
func WithPerm(perm os.FileMode) Option {
	return func(o *options) {
		if perm != 0 {
			o.perm = perm
		}
	}
}

// WithSequentialHint advises the kernel that input handles are read front to
// back. Linux only; elsewhere it does nothing. A failed hint is logged and
// never changes the outcome of the call.
func WithSequentialHint() Option {
	return func(o *options) {
		o.sequential = true
	}
}

func applyOptions(opts []Option) options {
	o := options{
		fs:        fs.NewReal(),
		chunkSize: streams.DefaultChunkSize,
		perm:      DefaultPerm,
	}

	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}

	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	if o.chunkSize <= 0 {
		o.chunkSize = streams.DefaultChunkSize
	}

	return o
}
