package pool

import (
	"sync"
)

const (
	// SmallBufferSize defines the size for small buffers (4KB)
	SmallBufferSize = 4 * 1024
	// MediumBufferSize defines the size for medium buffers (64KB)
	MediumBufferSize = 64 * 1024
	// LargeBufferSize defines the size for large buffers (1MB)
	LargeBufferSize = 1024 * 1024
)

// BufferPool manages reusable read buffers of different sizes to reduce allocations.
type BufferPool struct {
	small  *sync.Pool
	medium *sync.Pool
	large  *sync.Pool
}

func newTier(size int) *sync.Pool {
	return &sync.Pool{
		New: func() any {
			buf := make([]byte, size)
			return &buf
		},
	}
}

// NewBufferPool creates a new buffer pool with default sizes.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		small:  newTier(SmallBufferSize),
		medium: newTier(MediumBufferSize),
		large:  newTier(LargeBufferSize),
	}
}

// GetBuffer returns a full-length buffer of at least the requested size.
// If the requested size is larger than LargeBufferSize, a new buffer is allocated.
// The caller is responsible for calling PutBuffer to return the buffer to the pool.
func (bp *BufferPool) GetBuffer(size int) []byte {
	var tier *sync.Pool
	switch {
	case size <= SmallBufferSize:
		tier = bp.small
	case size <= MediumBufferSize:
		tier = bp.medium
	case size <= LargeBufferSize:
		tier = bp.large
	default:
		return make([]byte, size)
	}
	bufPtr := tier.Get().(*[]byte)
	return (*bufPtr)[:cap(*bufPtr)]
}

// PutBuffer returns a buffer to the appropriate pool based on its capacity.
// Buffers of any other capacity are dropped.
func (bp *BufferPool) PutBuffer(buf []byte) {
	buf = buf[:cap(buf)]
	switch cap(buf) {
	case SmallBufferSize:
		bp.small.Put(&buf)
	case MediumBufferSize:
		bp.medium.Put(&buf)
	case LargeBufferSize:
		bp.large.Put(&buf)
	}
}

// Global buffer pool instance for use throughout the module.
var globalBufferPool = NewBufferPool()

// GetBuffer returns a buffer from the global pool for the specified size.
func GetBuffer(size int) []byte {
	return globalBufferPool.GetBuffer(size)
}

// PutBuffer returns a buffer to the global pool.
func PutBuffer(buf []byte) {
	globalBufferPool.PutBuffer(buf)
}
