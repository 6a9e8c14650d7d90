// Package assemble joins ordered chunks back into one byte stream.
//
// Concat wraps chunks that are already resident; Pipe streams chunks to a
// reader as a producer delivers them.
package assemble

import (
	"context"
	"errors"
	"io"
)

// Sequence is a read-once concatenation of byte slices.
type Sequence struct {
	chunks [][]byte
	size   int64
}

// Concat returns a Sequence over chunks in the given order. The chunks are
// not copied.
func Concat(chunks [][]byte) *Sequence {
	s := &Sequence{chunks: chunks}
	for _, c := range chunks {
		s.size += int64(len(c))
	}
	return s
}

// Len returns the number of unread bytes.
func (s *Sequence) Len() int64 {
	return s.size
}

// Read implements io.Reader.
func (s *Sequence) Read(p []byte) (int, error) {
	var n int
	for n < len(p) && len(s.chunks) > 0 {
		c := copy(p[n:], s.chunks[0])
		n += c
		s.size -= int64(c)
		if c == len(s.chunks[0]) {
			s.chunks = s.chunks[1:]
		} else {
			s.chunks[0] = s.chunks[0][c:]
		}
	}
	if n == 0 && len(s.chunks) == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// WriteTo implements io.WriterTo.
func (s *Sequence) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for len(s.chunks) > 0 {
		n, err := w.Write(s.chunks[0])
		total += int64(n)
		s.size -= int64(n)
		if err != nil {
			s.chunks[0] = s.chunks[0][n:]
			return total, err
		}
		if n != len(s.chunks[0]) {
			s.chunks[0] = s.chunks[0][n:]
			return total, io.ErrShortWrite
		}
		s.chunks = s.chunks[1:]
	}
	return total, nil
}

// Bytes returns the unread bytes as one contiguous slice.
func (s *Sequence) Bytes() []byte {
	if len(s.chunks) == 1 {
		return s.chunks[0]
	}
	out := make([]byte, 0, s.size)
	for _, c := range s.chunks {
		out = append(out, c...)
	}
	return out
}

// Producer writes chunks in order through deliver until it is done or deliver
// fails.
type Producer func(ctx context.Context, deliver func([]byte) error) error

// ErrClosed is the cancellation cause seen by a producer whose reader was closed.
var ErrClosed = errors.New("assemble: reader closed")

// Pipe runs producer in its own goroutine and returns a reader over the
// chunks it delivers. The reader returns the producer's error once the
// delivered bytes are consumed. Closing the reader cancels the producer.
func Pipe(ctx context.Context, producer Producer) io.ReadCloser {
	ctx, cancel := context.WithCancelCause(ctx)
	pr, pw := io.Pipe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		err := producer(ctx, func(b []byte) error {
			if len(b) == 0 {
				return nil
			}
			_, err := pw.Write(b)
			return err
		})
		_ = pw.CloseWithError(err)
	}()

	return &pipeReader{PipeReader: pr, cancel: cancel, done: done}
}

type pipeReader struct {
	*io.PipeReader
	cancel context.CancelCauseFunc
	done   <-chan struct{}
}

// Close cancels the producer and waits for it to return.
func (r *pipeReader) Close() error {
	r.cancel(ErrClosed)
	err := r.PipeReader.CloseWithError(ErrClosed)
	<-r.done
	return err
}
