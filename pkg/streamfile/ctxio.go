package streamfile

import (
	"context"
	"io"
)

// ctxReader fails reads once ctx is done. It is how a cancelled call
// unwinds a computation that is blocked on its input stream.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}

	return r.r.Read(p)
}

// ctxWriter fails writes once ctx is done. Flush is not guarded: bytes the
// stream already accepted may still reach the handle during the close step.
type ctxWriter struct {
	ctx   context.Context
	w     io.Writer
	flush func() error
}

func (w ctxWriter) Write(p []byte) (int, error) {
	if err := w.ctx.Err(); err != nil {
		return 0, err
	}

	return w.w.Write(p)
}

func (w ctxWriter) Flush() error {
	if w.flush == nil {
		return nil
	}

	return w.flush()
}
