// Package chunk coalesces variably sized input buffers into part-sized chunks.
//
// The threshold is a lower bound: an accumulation is emitted whole as soon as
// it reaches the threshold, so a chunk may exceed it by up to one input buffer.
// Only the final chunk of a stream may be smaller.
package chunk

import (
	"context"
	"errors"
	"io"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// Aggregator accumulates input buffers until the threshold is reached.
// It is not safe for concurrent use.
type Aggregator struct {
	threshold int
	pool      *pool.ChunkPool
	buf       []byte
}

// NewAggregator creates an aggregator emitting chunks of at least threshold
// bytes. Chunk buffers are drawn from p when it is non-nil.
func NewAggregator(threshold int, p *pool.ChunkPool) *Aggregator {
	return &Aggregator{threshold: threshold, pool: p}
}

// Add copies p into the accumulation. When the accumulation reaches the
// threshold it is returned whole and the aggregator starts a new one.
func (a *Aggregator) Add(p []byte) ([]byte, bool) {
	if len(p) == 0 {
		return nil, false
	}
	if a.buf == nil {
		a.buf = a.newBuffer()
	}
	a.buf = append(a.buf, p...)
	if len(a.buf) >= a.threshold {
		out := a.buf
		a.buf = nil
		return out, true
	}
	return nil, false
}

// Flush returns any remainder, even if below the threshold.
func (a *Aggregator) Flush() ([]byte, bool) {
	if len(a.buf) == 0 {
		a.release(a.buf)
		a.buf = nil
		return nil, false
	}
	out := a.buf
	a.buf = nil
	return out, true
}

// Buffered returns the number of bytes accumulated but not yet emitted.
func (a *Aggregator) Buffered() int {
	return len(a.buf)
}

func (a *Aggregator) newBuffer() []byte {
	if a.pool != nil {
		return a.pool.Get()
	}
	return make([]byte, 0, a.threshold)
}

func (a *Aggregator) release(buf []byte) {
	if a.pool != nil && buf != nil {
		a.pool.Put(buf)
	}
}

// Chunker pulls buffers from a source and yields aggregated chunks.
type Chunker struct {
	src  s3types.BufferSource
	agg  *Aggregator
	pool *pool.ChunkPool
	eof  bool
}

// NewChunker creates a chunker over src.
func NewChunker(src s3types.BufferSource, threshold int, p *pool.ChunkPool) *Chunker {
	return &Chunker{
		src:  src,
		agg:  NewAggregator(threshold, p),
		pool: p,
	}
}

// Next returns the next chunk, or io.EOF once the source and the
// accumulation are both exhausted.
func (c *Chunker) Next(ctx context.Context) ([]byte, error) {
	for !c.eof {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buf, err := c.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			c.eof = true
			break
		}
		if err != nil {
			return nil, err
		}
		if out, ok := c.agg.Add(buf); ok {
			return out, nil
		}
	}
	if out, ok := c.agg.Flush(); ok {
		return out, nil
	}
	return nil, io.EOF
}

// Release hands a chunk returned by Next back to the pool.
func (c *Chunker) Release(buf []byte) {
	c.pool.Put(buf)
}

// Replay returns a source that yields held before continuing with rest.
func Replay(rest s3types.BufferSource, held ...[]byte) s3types.BufferSource {
	return &replaySource{held: held, rest: rest}
}

type replaySource struct {
	held [][]byte
	rest s3types.BufferSource
}

// Release forwards to rest when it pools its buffers.
func (r *replaySource) Release(buf []byte) {
	if rel, ok := r.rest.(interface{ Release([]byte) }); ok {
		rel.Release(buf)
	}
}

func (r *replaySource) Next(ctx context.Context) ([]byte, error) {
	if len(r.held) > 0 {
		buf := r.held[0]
		r.held = r.held[1:]
		return buf, nil
	}
	return r.rest.Next(ctx)
}
