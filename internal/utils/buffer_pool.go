package utils

import (
	"bytes"
	"sync"
)

// maxPooledBufferSize is the largest buffer returned to the pool. Bigger
// buffers are discarded to prevent memory bloat.
const maxPooledBufferSize = 64 * 1024

// BufferPool manages reusable bytes.Buffer instances for the streaming hot
// path.
var BufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// GetBuffer retrieves a buffer from the pool.
func GetBuffer() *bytes.Buffer {
	return BufferPool.Get().(*bytes.Buffer)
}

// PutBuffer resets the buffer and returns it to the pool.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	if buf.Cap() > maxPooledBufferSize {
		return
	}
	buf.Reset()
	BufferPool.Put(buf)
}
