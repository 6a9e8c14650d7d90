package s3transfer

import (
	"context"
	"io"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// readBufferSize is the size of each read from an io.Reader source.
const readBufferSize = pool.MediumBufferSize

// maxEmptyReads bounds consecutive reads that return no data and no error.
const maxEmptyReads = 100

type readerSource struct {
	r   io.Reader
	buf []byte
	err error
}

// FromReader adapts r to a buffer source. Each buffer is one Read of up to
// 64KB and is reused by the next call.
func FromReader(r io.Reader) s3types.BufferSource {
	return &readerSource{r: r}
}

func (s *readerSource) Next(ctx context.Context) ([]byte, error) {
	if s.err != nil {
		s.release()
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.buf == nil {
		s.buf = pool.GetBuffer(readBufferSize)
	}

	for range maxEmptyReads {
		n, err := s.r.Read(s.buf)
		if err != nil {
			s.err = err
		}
		if n > 0 {
			return s.buf[:n], nil
		}
		if err != nil {
			s.release()
			return nil, err
		}
	}
	s.err = io.ErrNoProgress
	s.release()
	return nil, s.err
}

func (s *readerSource) release() {
	if s.buf != nil {
		pool.PutBuffer(s.buf)
		s.buf = nil
	}
}

type channelSource struct {
	ch <-chan []byte
}

// FromChannel yields the buffers received on ch until it is closed.
func FromChannel(ch <-chan []byte) s3types.BufferSource {
	return &channelSource{ch: ch}
}

func (s *channelSource) Next(ctx context.Context) ([]byte, error) {
	select {
	case buf, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return buf, nil
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

type bufferSource struct {
	bufs [][]byte
}

// FromBuffers yields bufs in order.
func FromBuffers(bufs ...[]byte) s3types.BufferSource {
	return &bufferSource{bufs: bufs}
}

func (s *bufferSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.bufs) == 0 {
		return nil, io.EOF
	}
	buf := s.bufs[0]
	s.bufs = s.bufs[1:]
	return buf, nil
}
