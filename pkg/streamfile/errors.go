package streamfile

import (
	"errors"
	"strings"
)

// Op names the lifecycle step that failed.
type Op string

const (
	OpOpen      Op = "open"
	OpSeek      Op = "seek"
	OpConfigure Op = "configure"
	OpClose     Op = "close"
	OpCommit    Op = "commit"
)

var (
	// ErrInvalidBuffering is returned (wrapped in an [*Error] with
	// [OpConfigure]) when a [Buffering] cannot be applied to a handle.
	ErrInvalidBuffering = errors.New("invalid buffering")

	// ErrInvalidMode is returned (wrapped in an [*Error] with [OpOpen]) for a
	// [Mode] outside the defined constants. No handle is opened.
	ErrInvalidMode = errors.New("invalid mode")
)

// Error records a failed lifecycle step of a scoped call, in the manner of
// [fs.PathError].
//
// Errors returned by the caller's computation are passed through unchanged
// and are never wrapped in *Error, unless the close step also failed.
type Error struct {
	Op   Op
	Path string
	Err  error

	// Suppressed is the earlier failure (seek, configure or computation) that
	// a close failure replaced. It is deliberately not part of the Unwrap
	// chain: errors.Is and errors.As only see the close failure.
	Suppressed error
}

// Error formats as "op path: err". A nil Err drops the ": err" part.
func (e *Error) Error() string {
	var sb strings.Builder

	sb.WriteString(string(e.Op))
	sb.WriteString(" ")
	sb.WriteString(e.Path)

	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}

	if e.Suppressed != nil {
		sb.WriteString(" (superseded: ")
		sb.WriteString(e.Suppressed.Error())
		sb.WriteString(")")
	}

	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsCloseError reports whether err is a close-step failure of a scoped call.
func IsCloseError(err error) bool {
	var e *Error

	return errors.As(err, &e) && e.Op == OpClose
}
