package pool

import (
	"sync"
	"sync/atomic"
)

// ChunkPool hands out zero-length buffers with a fixed capacity, one per
// in-flight part. A buffer that grew past the capacity is not taken back.
type ChunkPool struct {
	size int
	pool sync.Pool

	// allocated counts buffers created because the pool was empty
	allocated atomic.Int64
}

// NewChunkPool creates a pool of buffers with the given capacity.
func NewChunkPool(size int) *ChunkPool {
	cp := &ChunkPool{size: size}
	cp.pool.New = func() any {
		cp.allocated.Add(1)
		buf := make([]byte, 0, cp.size)
		return &buf
	}
	return cp
}

// Size returns the capacity of pooled buffers.
func (cp *ChunkPool) Size() int {
	return cp.size
}

// Get returns an empty buffer with capacity Size().
func (cp *ChunkPool) Get() []byte {
	bufPtr := cp.pool.Get().(*[]byte)
	return (*bufPtr)[:0]
}

// Put returns buf to the pool. The buffer must not be used afterwards.
func (cp *ChunkPool) Put(buf []byte) {
	if cp == nil || cap(buf) != cp.size {
		return
	}
	buf = buf[:0]
	cp.pool.Put(&buf)
}

// Allocated reports how many buffers the pool has created.
func (cp *ChunkPool) Allocated() int64 {
	return cp.allocated.Load()
}
