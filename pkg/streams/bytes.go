package streams

import (
	"bytes"
	"errors"
	"io"
)

// DefaultChunkSize is the chunk size [FromReader] uses when given a
// non-positive size.
const DefaultChunkSize = 32 * 1024

// Flusher is implemented by writers that buffer, such as [bufio.Writer].
type Flusher interface {
	Flush() error
}

// FromReader returns a stream of chunks read from r.
//
// Each chunk is a freshly allocated slice of at most chunkSize bytes, so
// callers may keep chunks after the next Read. Empty reads are skipped. When
// r returns data together with an error, the data is yielded first and the
// error on the following Read.
func FromReader(r io.Reader, chunkSize int) *InputStream[[]byte] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return newChunkStream(r, func() []byte {
		return make([]byte, chunkSize)
	})
}

// FromReaderReusing returns a stream of chunks that all alias buf.
//
// Chunk n is only valid until chunk n+1 is read: the next Read overwrites
// it in place. Callers that keep chunks must copy them. This avoids one
// allocation per chunk on hot read loops. Panics if buf is empty.
func FromReaderReusing(r io.Reader, buf []byte) *InputStream[[]byte] {
	if len(buf) == 0 {
		panic("streams: reuse buffer is empty")
	}

	return newChunkStream(r, func() []byte {
		return buf
	})
}

func newChunkStream(r io.Reader, nextBuf func() []byte) *InputStream[[]byte] {
	if r == nil {
		panic("streams: reader is nil")
	}

	var pendingErr error

	return NewInputStream(func() ([]byte, error) {
		for {
			if pendingErr != nil {
				return nil, pendingErr
			}

			buf := nextBuf()

			n, err := r.Read(buf)
			if err != nil {
				pendingErr = err
			}

			if n > 0 {
				return buf[:n:n], nil
			}
		}
	})
}

// ToWriter returns a stream that writes each chunk to w.
//
// Empty chunks are dropped. A short write without an error is reported as
// [io.ErrShortWrite]. Close flushes w when it implements [Flusher]; it never
// closes w.
func ToWriter(w io.Writer) *OutputStream[[]byte] {
	if w == nil {
		panic("streams: writer is nil")
	}

	write := func(p []byte) error {
		if len(p) == 0 {
			return nil
		}

		n, err := w.Write(p)
		if err != nil {
			return err
		}

		if n != len(p) {
			return io.ErrShortWrite
		}

		return nil
	}

	var closeFn func() error
	if f, ok := w.(Flusher); ok {
		closeFn = f.Flush
	}

	return NewOutputStream(write, closeFn)
}

// AsReader exposes a chunk stream as an [io.Reader].
func AsReader(s *InputStream[[]byte]) io.Reader {
	return &streamReader{s: s}
}

type streamReader struct {
	s    *InputStream[[]byte]
	rest []byte
}

func (r *streamReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for len(r.rest) == 0 {
		chunk, err := r.s.Read()
		if err != nil {
			return 0, err
		}

		r.rest = chunk
	}

	n := copy(p, r.rest)
	r.rest = r.rest[n:]

	return n, nil
}

// AsWriter exposes a chunk stream as an [io.Writer]. Each Write sends a copy
// of p, so the stream may keep chunks. Close on the stream is left to the
// caller.
func AsWriter(s *OutputStream[[]byte]) io.Writer {
	return streamWriter{s: s}
}

type streamWriter struct {
	s *OutputStream[[]byte]
}

func (w streamWriter) Write(p []byte) (int, error) {
	err := w.s.Write(bytes.Clone(p))
	if err != nil {
		return 0, err
	}

	return len(p), nil
}

// ReadBytes drains a chunk stream and returns the concatenated bytes.
func ReadBytes(s *InputStream[[]byte]) ([]byte, error) {
	var out bytes.Buffer

	for {
		chunk, err := s.Read()
		if errors.Is(err, io.EOF) {
			return out.Bytes(), nil
		}

		if err != nil {
			return out.Bytes(), err
		}

		out.Write(chunk)
	}
}

// CopyBytes is [Connect] for byte chunks. It returns the number of bytes
// copied rather than the number of chunks.
func CopyBytes(in *InputStream[[]byte], out *OutputStream[[]byte]) (int64, error) {
	var n int64

	for {
		chunk, err := in.Read()
		if errors.Is(err, io.EOF) {
			return n, nil
		}

		if err != nil {
			return n, err
		}

		err = out.Write(chunk)
		if err != nil {
			return n, err
		}

		n += int64(len(chunk))
	}
}
