package console

import (
	"context"
	"io"
)

// Stream adapts a blocking reader and a writer (stdio, a pty, a pipe) to a
// Port. One background goroutine owns the reader.
type Stream struct {
	w    io.Writer
	data chan []byte
	err  error
	buf  []byte
}

func NewStream(r io.Reader, w io.Writer) *Stream {
	s := &Stream{w: w, data: make(chan []byte)}
	go s.pump(r)
	return s
}

func (s *Stream) pump(r io.Reader) {
	for {
		b := make([]byte, 128)
		n, err := r.Read(b)
		if n > 0 {
			s.data <- b[:n]
		}
		if err != nil {
			s.err = err
			close(s.data)
			return
		}
	}
}

func (s *Stream) Write(p []byte) (int, error) { return s.w.Write(p) }

// RecvSomeContext blocks until some bytes arrive, the reader fails or ctx is
// done.
func (s *Stream) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	if len(s.buf) == 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case b, ok := <-s.data:
			if !ok {
				if s.err == nil {
					return 0, io.EOF
				}
				return 0, s.err
			}
			s.buf = b
		}
	}
	n := copy(buf, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}
