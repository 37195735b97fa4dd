package queue

import "sync"

// Payload buffers are pooled by size class. Lines are usually short, chunks
// are bounded by the adapter's read buffer, so three classes cover nearly
// every item without keeping oversized buffers alive.
const (
	// smallBufferSize holds typical lines.
	smallBufferSize = 512

	// mediumBufferSize matches the default read buffer, so a full chunk fits.
	mediumBufferSize = 64 << 10 // 64KB

	// largeBufferSize covers enlarged read buffers and long lines.
	largeBufferSize = 1 << 20 // 1MB
)

// bufferPool manages a set of byte slice pools organized by size class.
type bufferPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
}

var globalBufferPool = &bufferPool{
	small: sync.Pool{
		New: func() any {
			buf := make([]byte, smallBufferSize)
			return &buf
		},
	},
	medium: sync.Pool{
		New: func() any {
			buf := make([]byte, mediumBufferSize)
			return &buf
		},
	},
	large: sync.Pool{
		New: func() any {
			buf := make([]byte, largeBufferSize)
			return &buf
		},
	},
}

// Get returns a slice of exactly size bytes, backed by a pooled buffer when
// one of the size classes fits. Sizes above largeBufferSize are allocated
// directly and never pooled.
func (p *bufferPool) Get(size int) []byte {
	var bufPtr *[]byte

	switch {
	case size <= smallBufferSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= mediumBufferSize:
		bufPtr = p.medium.Get().(*[]byte)
	case size <= largeBufferSize:
		bufPtr = p.large.Get().(*[]byte)
	default:
		return make([]byte, size)
	}

	buf := *bufPtr
	return buf[:size]
}

// Put returns a buffer obtained from Get. Buffers whose capacity does not
// match a size class are left to the garbage collector.
func (p *bufferPool) Put(buf []byte) {
	if buf == nil {
		return
	}

	fullBuf := buf[:cap(buf)]
	switch cap(buf) {
	case smallBufferSize:
		p.small.Put(&fullBuf)
	case mediumBufferSize:
		p.medium.Put(&fullBuf)
	case largeBufferSize:
		p.large.Put(&fullBuf)
	}
}

// GetBuffer acquires a buffer of length size from the global pool.
//
// Usage:
//
//	buf := GetBuffer(size)
//	defer PutBuffer(buf)
func GetBuffer(size int) []byte {
	return globalBufferPool.Get(size)
}

// PutBuffer returns a buffer to the global pool.
func PutBuffer(buf []byte) {
	globalBufferPool.Put(buf)
}
