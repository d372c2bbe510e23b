// Package streams provides pull and push streams of values.
//
// An [InputStream] yields values until it returns [io.EOF]. An [OutputStream]
// accepts values until it is closed, which marks end-of-stream.
//
// Byte-chunk streams over handles are built with [FromReader],
// [FromReaderReusing] and [ToWriter]. [AsReader] and [AsWriter] go the other
// way, so any [io.Reader]/[io.Writer] consumer can sit on top of a stream.
//
// Streams are not safe for concurrent use.
package streams

import (
	"errors"
	"io"
)

// ErrClosed is returned by [OutputStream.Write] after [OutputStream.Close].
var ErrClosed = errors.New("streams: write to closed stream")

// InputStream is a pull-based stream of T.
//
// Read returns the next value, or [io.EOF] once the source is exhausted.
// Any error from the source, including io.EOF, is sticky: every later Read
// returns it again.
type InputStream[T any] struct {
	next    func() (T, error)
	pending []T
	err     error
}

// NewInputStream returns a stream that pulls values from next.
// next returns io.EOF to signal end-of-stream. Panics if next is nil.
func NewInputStream[T any](next func() (T, error)) *InputStream[T] {
	if next == nil {
		panic("streams: next is nil")
	}

	return &InputStream[T]{next: next}
}

// Read returns the next value.
func (s *InputStream[T]) Read() (T, error) {
	if n := len(s.pending); n > 0 {
		v := s.pending[n-1]
		s.pending = s.pending[:n-1]

		return v, nil
	}

	if s.err != nil {
		var zero T

		return zero, s.err
	}

	v, err := s.next()
	if err != nil {
		s.err = err

		var zero T

		return zero, err
	}

	return v, nil
}

// Unread pushes v back so the next Read returns it. Values pushed back are
// returned in LIFO order, before any sticky error.
func (s *InputStream[T]) Unread(v T) {
	s.pending = append(s.pending, v)
}

// Peek returns the next value without consuming it.
func (s *InputStream[T]) Peek() (T, error) {
	v, err := s.Read()
	if err != nil {
		return v, err
	}

	s.Unread(v)

	return v, nil
}

// OutputStream is a push-based stream of T.
//
// Close marks end-of-stream. It is idempotent and flushes whatever the sink
// buffers; later Writes fail with [ErrClosed].
type OutputStream[T any] struct {
	write  func(T) error
	close  func() error
	closed bool
}

// NewOutputStream returns a stream that hands each value to write and calls
// closeFn once on the first Close. closeFn may be nil. Panics if write is nil.
func NewOutputStream[T any](write func(T) error, closeFn func() error) *OutputStream[T] {
	if write == nil {
		panic("streams: write is nil")
	}

	return &OutputStream[T]{write: write, close: closeFn}
}

// Write sends v to the sink.
func (s *OutputStream[T]) Write(v T) error {
	if s.closed {
		return ErrClosed
	}

	return s.write(v)
}

// Close ends the stream.
func (s *OutputStream[T]) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	if s.close == nil {
		return nil
	}

	return s.close()
}

// Closed reports whether Close has been called.
func (s *OutputStream[T]) Closed() bool {
	return s.closed
}

// FromSlice returns a stream over vals.
func FromSlice[T any](vals []T) *InputStream[T] {
	i := 0

	return NewInputStream(func() (T, error) {
		if i >= len(vals) {
			var zero T

			return zero, io.EOF
		}

		v := vals[i]
		i++

		return v, nil
	})
}

// ReadAll drains s. Reaching io.EOF is success.
func ReadAll[T any](s *InputStream[T]) ([]T, error) {
	var out []T

	for {
		v, err := s.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}

		if err != nil {
			return out, err
		}

		out = append(out, v)
	}
}

// WriteAll writes vals to s in order and stops at the first error.
func WriteAll[T any](s *OutputStream[T], vals ...T) error {
	for _, v := range vals {
		err := s.Write(v)
		if err != nil {
			return err
		}
	}

	return nil
}

// Connect copies every value from in to out until in is exhausted. It does
// not close out. Returns the number of values copied.
func Connect[T any](in *InputStream[T], out *OutputStream[T]) (int64, error) {
	var n int64

	for {
		v, err := in.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}

		if err != nil {
			return n, err
		}

		err = out.Write(v)
		if err != nil {
			return n, err
		}

		n++
	}
}
