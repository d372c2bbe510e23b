package streamfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Mode selects how an output file is opened.
type Mode uint8

const (
	// WriteMode creates the file or truncates it.
	WriteMode Mode = iota
	// AppendMode creates the file if needed; every write goes to the end.
	AppendMode
	// ReadWriteMode creates the file if needed and opens it for reading and
	// writing without truncating. Writes start at offset 0.
	ReadWriteMode
)

func (m Mode) flags() (int, bool) {
	switch m {
	case WriteMode:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, true
	case AppendMode:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, true
	case ReadWriteMode:
		return os.O_RDWR | os.O_CREATE, true
	default:
		return 0, false
	}
}

func (m Mode) String() string {
	switch m {
	case WriteMode:
		return "write"
	case AppendMode:
		return "append"
	case ReadWriteMode:
		return "readwrite"
	default:
		return "Mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// ParseMode parses "write", "append" or "readwrite".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "write", "":
		return WriteMode, nil
	case "append":
		return AppendMode, nil
	case "readwrite", "rw":
		return ReadWriteMode, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// DefaultBlockSize is the buffer size used by [BlockBuffering] with a
// non-positive size and by [LineBuffering].
const DefaultBlockSize = 32 * 1024

type bufferKind uint8

const (
	bufferNone bufferKind = iota
	bufferLine
	bufferBlock
)

// Buffering is the output buffering applied to a handle before its stream is
// built. The zero value is [NoBuffering].
type Buffering struct {
	kind bufferKind
	size int
}

// NoBuffering passes every stream write straight to the handle.
func NoBuffering() Buffering {
	return Buffering{kind: bufferNone}
}

// LineBuffering buffers writes and flushes whenever a write contains '\n'.
func LineBuffering() Buffering {
	return Buffering{kind: bufferLine, size: DefaultBlockSize}
}

// BlockBuffering buffers up to size bytes between flushes. size 0 selects
// [DefaultBlockSize]; a negative size fails the configure step with
// [ErrInvalidBuffering].
func BlockBuffering(size int) Buffering {
	if size == 0 {
		size = DefaultBlockSize
	}

	return Buffering{kind: bufferBlock, size: size}
}

func (b Buffering) String() string {
	switch b.kind {
	case bufferNone:
		return "none"
	case bufferLine:
		return "line"
	case bufferBlock:
		return "block:" + strconv.Itoa(b.size)
	default:
		return "invalid"
	}
}

// ParseBuffering parses "none", "line", "block" or "block:N".
func ParseBuffering(s string) (Buffering, error) {
	kind, size, hasSize := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")

	switch {
	case (kind == "none" || kind == "") && !hasSize:
		return NoBuffering(), nil
	case kind == "line" && !hasSize:
		return LineBuffering(), nil
	case kind == "block" && !hasSize:
		return BlockBuffering(0), nil
	case kind == "block":
		n, err := strconv.Atoi(size)
		if err != nil || n < 0 {
			return Buffering{}, fmt.Errorf("%w: %q", ErrInvalidBuffering, s)
		}

		return BlockBuffering(n), nil
	default:
		return Buffering{}, fmt.Errorf("%w: %q", ErrInvalidBuffering, s)
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (b Buffering) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler] via [ParseBuffering].
func (b *Buffering) UnmarshalText(text []byte) error {
	parsed, err := ParseBuffering(string(text))
	if err != nil {
		return err
	}

	*b = parsed

	return nil
}

// configure wraps w according to b. flush is nil for unbuffered writers.
func (b Buffering) configure(w io.Writer) (io.Writer, func() error, error) {
	switch b.kind {
	case bufferNone:
		return w, nil, nil

	case bufferLine:
		lw := &lineWriter{bw: bufio.NewWriterSize(w, b.size)}

		return lw, lw.bw.Flush, nil

	case bufferBlock:
		if b.size < 0 {
			return nil, nil, fmt.Errorf("%w: block size %d", ErrInvalidBuffering, b.size)
		}

		bw := bufio.NewWriterSize(w, b.size)

		return bw, bw.Flush, nil

	default:
		return nil, nil, fmt.Errorf("%w: kind %d", ErrInvalidBuffering, b.kind)
	}
}

// lineWriter flushes its buffer after any write containing a newline.
type lineWriter struct {
	bw *bufio.Writer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	n, err := w.bw.Write(p)
	if err != nil {
		return n, err
	}

	if bytes.IndexByte(p, '\n') >= 0 {
		err = w.bw.Flush()
	}

	return n, err
}
