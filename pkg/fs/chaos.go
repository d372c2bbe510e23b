package fs

import (
	"errors"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
//
// The zero value disables all fault injection, which still leaves handle
// accounting and tracing available. Use [Chaos.SetMode] with [ChaosModeNoOp]
// to turn injection off after construction.
type ChaosConfig struct {
	// OpenFailRate controls how often FS.Open and FS.OpenFile fail before a
	// handle exists. For read-only opens: EACCES, EIO, EMFILE, ENFILE.
	// For write opens (O_WRONLY, O_CREATE, etc.): adds ENOSPC, EDQUOT, EROFS.
	OpenFailRate float64

	// ReadFailRate controls how often File.Read and FS.ReadFile fail entirely,
	// returning zero bytes and EIO.
	ReadFailRate float64

	// ShortReadRate controls how often File.Read returns fewer bytes than
	// requested with a nil error. The underlying read is limited, so no bytes
	// are skipped. Callers that assume full reads break under this.
	ShortReadRate float64

	// WriteFailRate controls how often File.Write fails entirely, writing zero
	// bytes and returning EIO, ENOSPC, EDQUOT, or EROFS.
	WriteFailRate float64

	// PartialWriteRate controls how often File.Write writes a prefix and then
	// fails with an errno.
	PartialWriteRate float64

	// SeekFailRate controls how often File.Seek fails, returning position 0
	// and EIO. The handle's offset is left untouched.
	SeekFailRate float64

	// SyncFailRate controls how often File.Sync fails with EIO, ENOSPC,
	// EDQUOT, or EROFS.
	SyncFailRate float64

	// CloseFailRate controls how often File.Close reports an error. The
	// underlying descriptor is always released first, so an injected close
	// failure never leaks a handle. Returns EIO.
	CloseFailRate float64

	// RenameFailRate controls how often FS.Rename fails with an
	// *os.LinkError carrying EACCES, EIO, ENOSPC, EXDEV, EROFS, or EPERM.
	RenameFailRate float64

	// RemoveFailRate controls how often FS.Remove fails with EACCES, EPERM,
	// EBUSY, EIO, or EROFS.
	RemoveFailRate float64

	// StatFailRate controls how often FS.Stat and FS.Exists fail with EACCES
	// or EIO.
	StatFailRate float64

	// TraceCapacity is the max number of operations to keep in the trace log.
	// Set to 0 (default) to disable tracing.
	TraceCapacity int
}

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModeActive enables fault-rate injection.
	// This is the default mode for a new [Chaos].
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every operation directly to the underlying FS.
	// Handle accounting and tracing keep working.
	ChaosModeNoOp
)

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	OpenFails     int64
	ReadFails     int64
	ShortReads    int64
	WriteFails    int64
	PartialWrites int64
	SeekFails     int64
	SyncFails     int64
	CloseFails    int64
	RenameFails   int64
	RemoveFails   int64
	StatFails     int64
}

// Total returns the sum of all injected faults.
func (s ChaosStats) Total() int64 {
	return s.OpenFails + s.ReadFails + s.ShortReads + s.WriteFails +
		s.PartialWrites + s.SeekFails + s.SyncFails + s.CloseFails +
		s.RenameFails + s.RemoveFails + s.StatFails
}

// HandleStats counts handle lifecycle events observed by [Chaos].
//
// A handle counts as opened when Open or OpenFile returned it, and
// as closed on its first Close call, whether or not that Close reported an
// error. Any further Close on the same handle is a DoubleClose.
type HandleStats struct {
	Opened       int64
	Closed       int64
	DoubleCloses int64
}

// Open returns the number of handles currently open.
func (s HandleStats) Open() int64 {
	return s.Opened - s.Closed
}

// chaosError marks an error as intentionally injected by [Chaos].
//
// It wraps the underlying error so errors.Is/As continue to work. Errno-style
// failures wrap an [*fs.PathError] (or [*os.LinkError] for rename), so
// os.IsPermission and friends behave like real OS errors.
type chaosError struct {
	Err error
}

func (e *chaosError) Error() string {
	return "chaos: " + e.Err.Error()
}

func (e *chaosError) Unwrap() error {
	return e.Err
}

// IsChaosErr reports whether err (or any wrapped error) was injected by [Chaos].
// Returns false if err is nil.
func IsChaosErr(err error) bool {
	var injected *chaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS], injects random failures, and counts handles.
//
// It is a "real filesystem + fault injection" wrapper, not a simulator.
// Each call independently decides whether to inject; there is no sticky
// per-path state.
//
// Return shapes follow [os.File] on Unix:
//   - File.Read failures return n==0 with a non-nil error.
//   - File.Write may return n>0 with a non-nil error (partial progress).
//   - File.Seek failures return pos==0 and leave the offset unchanged.
//   - File.Close failures still release the underlying descriptor.
//
// Chaos never injects ENOENT (missing paths come from the wrapped FS) and
// never injects EINTR.
//
// [Chaos.Handles] reports how many handles were opened and closed, which
// lets tests assert that every handle is closed exactly once.
type Chaos struct {
	fs     FS
	rng    *rand.Rand
	config ChaosConfig
	mode   atomic.Uint32
	trace  *chaosTrace

	rngMu sync.Mutex

	opened       atomic.Int64
	closed       atomic.Int64
	doubleCloses atomic.Int64

	openFails     atomic.Int64
	readFails     atomic.Int64
	shortReads    atomic.Int64
	writeFails    atomic.Int64
	partialWrites atomic.Int64
	seekFails     atomic.Int64
	syncFails     atomic.Int64
	closeFails    atomic.Int64
	renameFails   atomic.Int64
	removeFails   atomic.Int64
	statFails     atomic.Int64
}

// NewChaos creates a new [Chaos] filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
// A nil config is treated as the zero config. Panics if underlying is nil.
func NewChaos(underlying FS, seed int64, config *ChaosConfig) *Chaos {
	if underlying == nil {
		panic("underlying fs is nil")
	}

	if config == nil {
		config = &ChaosConfig{}
	}

	return &Chaos{
		fs:     underlying,
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
		config: *config,
		trace:  newChaosTrace(config.TraceCapacity),
	}
}

// SetMode updates [Chaos] behavior. Safe to call concurrently with
// filesystem operations.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// Trace returns a formatted string of recent FS operations.
// Returns an empty string if tracing is disabled (TraceCapacity == 0).
func (c *Chaos) Trace() string {
	return c.trace.String()
}

// TraceEvents returns a snapshot of the trace buffer.
// Returns nil if tracing is disabled (TraceCapacity == 0).
func (c *Chaos) TraceEvents() []TraceEvent {
	return c.trace.snapshot()
}

// TraceOps returns the events whose Op equals op, oldest first.
func (c *Chaos) TraceOps(op string) []TraceEvent {
	var out []TraceEvent

	for _, e := range c.trace.snapshot() {
		if e.Op == op {
			out = append(out, e)
		}
	}

	return out
}

// Stats returns the current fault injection counts.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		OpenFails:     c.openFails.Load(),
		ReadFails:     c.readFails.Load(),
		ShortReads:    c.shortReads.Load(),
		WriteFails:    c.writeFails.Load(),
		PartialWrites: c.partialWrites.Load(),
		SeekFails:     c.seekFails.Load(),
		SyncFails:     c.syncFails.Load(),
		CloseFails:    c.closeFails.Load(),
		RenameFails:   c.renameFails.Load(),
		RemoveFails:   c.removeFails.Load(),
		StatFails:     c.statFails.Load(),
	}
}

// Handles returns handle lifecycle counts.
func (c *Chaos) Handles() HandleStats {
	return HandleStats{
		Opened:       c.opened.Load(),
		Closed:       c.closed.Load(),
		DoubleCloses: c.doubleCloses.Load(),
	}
}

// Open opens a file for reading with fault injection.
func (c *Chaos) Open(path string) (File, error) {
	return c.openWithChaos(path, chaosOpOpen, func() (File, error) {
		return c.fs.Open(path)
	})
}

// OpenFile opens a file with the specified flags and permissions with fault injection.
func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	op := chaosOpOpen
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		op = chaosOpCreate
	}

	return c.openWithChaos(path, op, func() (File, error) {
		return c.fs.OpenFile(path, flag, perm)
	})
}

// ReadFile reads a file's contents with fault injection.
func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if c.should(c.config.ReadFailRate) {
		c.readFails.Add(1)

		err := pathError("read", path, syscall.EIO)
		c.trace.add("readfile", path, "fail", err, true)

		return nil, err
	}

	data, err := c.fs.ReadFile(path)

	c.trace.add("readfile", path, boolKind(err == nil), err, false,
		TraceAttr{"n", strconv.Itoa(len(data))})

	return data, err
}

// Stat returns file info with fault injection.
func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	err := c.introduceChaos("stat", path)
	if err != nil {
		return nil, err
	}

	info, err := c.fs.Stat(path)

	c.trace.add("stat", path, boolKind(err == nil), err, false)

	return info, err
}

// Exists checks file existence with fault injection.
func (c *Chaos) Exists(path string) (bool, error) {
	err := c.introduceChaos("stat", path)
	if err != nil {
		return false, err
	}

	exists, err := c.fs.Exists(path)

	c.trace.add("exists", path, boolKind(err == nil), err, false,
		TraceAttr{"exists", strconv.FormatBool(exists)})

	return exists, err
}

// Remove removes a file with fault injection.
func (c *Chaos) Remove(path string) error {
	err := c.introduceChaos("remove", path)
	if err != nil {
		return err
	}

	err = c.fs.Remove(path)

	c.trace.add("remove", path, boolKind(err == nil), err, false)

	return err
}

// Rename renames a file with fault injection.
func (c *Chaos) Rename(oldpath, newpath string) error {
	if c.should(c.config.RenameFailRate) {
		c.renameFails.Add(1)

		errno := c.pickRandom(renameErrnos)
		err := &chaosError{Err: &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: errno}}

		c.trace.add("rename", oldpath, "fail", err, true,
			TraceAttr{"newpath", newpath}, TraceAttr{"errno", errno.Error()})

		return err
	}

	err := c.fs.Rename(oldpath, newpath)

	c.trace.add("rename", oldpath, boolKind(err == nil), err, false,
		TraceAttr{"newpath", newpath})

	return err
}

func (c *Chaos) getMode() ChaosMode {
	v := c.mode.Load()
	if v > uint32(ChaosModeNoOp) {
		return ChaosModeActive
	}

	return ChaosMode(v)
}

// openWithChaos wraps file-open operations with fault injection and
// registers the returned handle for accounting.
func (c *Chaos) openWithChaos(path, op string, openFn func() (File, error)) (File, error) {
	if c.should(c.config.OpenFailRate) {
		c.openFails.Add(1)

		errno := c.pickRandom(openErrnos[op])
		err := pathError("open", path, errno)

		c.trace.add(op, path, "fail", err, true, TraceAttr{"errno", errno.Error()})

		return nil, err
	}

	file, err := openFn()
	if err != nil {
		c.trace.add(op, path, "fail", err, false)

		return nil, err
	}

	c.opened.Add(1)
	c.trace.add(op, path, "ok", nil, false)

	return &chaosFile{f: file, chaos: c, path: path}, nil
}

const (
	chaosOpOpen   = "open"
	chaosOpCreate = "create"
)

// Injected errnos per operation. ENOENT and EINTR are never injected.
var (
	openErrnos = map[string][]syscall.Errno{
		chaosOpOpen:   {syscall.EACCES, syscall.EIO, syscall.EMFILE, syscall.ENFILE},
		chaosOpCreate: {syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS, syscall.EMFILE, syscall.ENFILE},
	}
	writeErrnos  = []syscall.Errno{syscall.EIO, syscall.ENOSPC, syscall.EDQUOT, syscall.EROFS}
	renameErrnos = []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EXDEV, syscall.EROFS, syscall.EPERM}
	removeErrnos = []syscall.Errno{syscall.EACCES, syscall.EPERM, syscall.EBUSY, syscall.EIO, syscall.EROFS}
	statErrnos   = []syscall.Errno{syscall.EACCES, syscall.EIO}
)

// introduceChaos decides whether a path operation fails.
// Returns a non-nil error if a fault was injected, nil otherwise.
func (c *Chaos) introduceChaos(op, path string) error {
	var (
		rate    float64
		counter *atomic.Int64
		errnos  []syscall.Errno
	)

	switch op {
	case "stat":
		rate, counter, errnos = c.config.StatFailRate, &c.statFails, statErrnos
	case "remove":
		rate, counter, errnos = c.config.RemoveFailRate, &c.removeFails, removeErrnos
	default:
		panic("unknown fault op: " + op)
	}

	if !c.should(rate) {
		return nil
	}

	counter.Add(1)

	errno := c.pickRandom(errnos)
	err := pathError(op, path, errno)

	c.trace.add(op, path, "fail", err, true, TraceAttr{"errno", errno.Error()})

	return err
}

// should returns true with the given probability when chaos is injecting.
func (c *Chaos) should(rate float64) bool {
	if c.getMode() != ChaosModeActive || rate <= 0 {
		return false
	}

	return c.randFloat() < rate
}

func (c *Chaos) randFloat() float64 {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.Float64()
}

func (c *Chaos) randIntn(n int) int {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return c.rng.IntN(n)
}

func (c *Chaos) pickRandom(errs []syscall.Errno) syscall.Errno {
	return errs[c.randIntn(len(errs))]
}

// pathError creates an injected [*fs.PathError]. The result is marked for
// [IsChaosErr] while errors.Is(err, syscall.EIO) still matches.
func pathError(op, path string, errno syscall.Errno) error {
	return &chaosError{Err: &fs.PathError{Op: op, Path: path, Err: errno}}
}

// chaosFile wraps a [File], injects faults on handle operations and reports
// its first Close to the owning [Chaos].
type chaosFile struct {
	f      File
	chaos  *Chaos
	path   string
	closed atomic.Bool
}

var _ File = (*chaosFile)(nil)

func (cf *chaosFile) Read(buf []byte) (int, error) {
	c := cf.chaos

	if c.should(c.config.ReadFailRate) {
		c.readFails.Add(1)

		err := pathError("read", cf.path, syscall.EIO)
		c.trace.add("file.read", cf.path, "fail", err, true)

		return 0, err
	}

	// Limit the underlying read rather than shrinking n, otherwise the
	// offset advances past bytes the caller never saw.
	if len(buf) > 1 && c.should(c.config.ShortReadRate) {
		c.shortReads.Add(1)
		cutoff := c.randIntn(len(buf)-1) + 1

		n, err := cf.f.Read(buf[:cutoff])

		c.trace.add("file.read", cf.path, "short_read", err, true,
			TraceAttr{"n", strconv.Itoa(n)},
			TraceAttr{"requested", strconv.Itoa(len(buf))})

		return n, err
	}

	n, err := cf.f.Read(buf)

	kind := boolKind(err == nil)
	if errors.Is(err, io.EOF) {
		kind = "eof"
	}

	c.trace.add("file.read", cf.path, kind, err, false,
		TraceAttr{"n", strconv.Itoa(n)})

	return n, err
}

func (cf *chaosFile) Write(data []byte) (int, error) {
	c := cf.chaos

	if c.should(c.config.WriteFailRate) {
		c.writeFails.Add(1)

		errno := c.pickRandom(writeErrnos)
		err := pathError("write", cf.path, errno)

		c.trace.add("file.write", cf.path, "fail", err, true,
			TraceAttr{"errno", errno.Error()})

		return 0, err
	}

	if len(data) > 1 && c.should(c.config.PartialWriteRate) {
		c.partialWrites.Add(1)
		cutoff := c.randIntn(len(data)-1) + 1

		n, err := cf.f.Write(data[:cutoff])
		if err != nil {
			c.trace.add("file.write", cf.path, "fail", err, false,
				TraceAttr{"n", strconv.Itoa(n)})

			return n, err
		}

		errno := c.pickRandom(writeErrnos)
		err = pathError("write", cf.path, errno)

		c.trace.add("file.write", cf.path, "partial_write", err, true,
			TraceAttr{"n", strconv.Itoa(n)},
			TraceAttr{"requested", strconv.Itoa(len(data))})

		return n, err
	}

	n, err := cf.f.Write(data)

	c.trace.add("file.write", cf.path, boolKind(err == nil), err, false,
		TraceAttr{"n", strconv.Itoa(n)})

	return n, err
}

func (cf *chaosFile) Seek(offset int64, whence int) (int64, error) {
	c := cf.chaos

	attrs := []TraceAttr{
		{"offset", strconv.FormatInt(offset, 10)},
		{"whence", strconv.Itoa(whence)},
	}

	if c.should(c.config.SeekFailRate) {
		c.seekFails.Add(1)

		err := pathError("seek", cf.path, syscall.EIO)
		c.trace.add("file.seek", cf.path, "fail", err, true, attrs...)

		return 0, err
	}

	pos, err := cf.f.Seek(offset, whence)

	c.trace.add("file.seek", cf.path, boolKind(err == nil), err, false,
		append(attrs, TraceAttr{"pos", strconv.FormatInt(pos, 10)})...)

	return pos, err
}

func (cf *chaosFile) Fd() uintptr {
	return cf.f.Fd()
}

func (cf *chaosFile) Sync() error {
	c := cf.chaos

	if c.should(c.config.SyncFailRate) {
		c.syncFails.Add(1)

		errno := c.pickRandom(writeErrnos)
		err := pathError("sync", cf.path, errno)

		c.trace.add("file.sync", cf.path, "fail", err, true,
			TraceAttr{"errno", errno.Error()})

		return err
	}

	err := cf.f.Sync()

	c.trace.add("file.sync", cf.path, boolKind(err == nil), err, false)

	return err
}

func (cf *chaosFile) Close() error {
	c := cf.chaos

	if cf.closed.Swap(true) {
		c.doubleCloses.Add(1)

		err := cf.f.Close()
		c.trace.add("file.close", cf.path, "double_close", err, false)

		return err
	}

	c.closed.Add(1)

	inject := c.should(c.config.CloseFailRate)

	// The descriptor is released even when a failure is injected.
	err := cf.f.Close()
	if err != nil {
		c.trace.add("file.close", cf.path, "fail", err, false)

		return err
	}

	if inject {
		c.closeFails.Add(1)

		err := pathError("close", cf.path, syscall.EIO)
		c.trace.add("file.close", cf.path, "fail", err, true)

		return err
	}

	c.trace.add("file.close", cf.path, "ok", nil, false)

	return nil
}

var _ FS = (*Chaos)(nil)
