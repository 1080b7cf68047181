package buffers

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/rescale/dlxt/internal/constants"
)

// Pool provides reusable copy buffers for response bodies and decompression
// streams, so parallel transfers do not each allocate a fresh buffer.

// Pool monitoring counters
var (
	copyAllocations int64 // Total copy buffer allocations (new creates)
	copyGets        int64 // Total buffers handed out
)

var copyPool = &sync.Pool{
	New: func() interface{} {
		atomic.AddInt64(&copyAllocations, 1)
		buf := make([]byte, constants.CopyBufferSize)
		return &buf
	},
}

// GetCopyBuffer retrieves a CopyBufferSize buffer from the pool.
// The buffer must be returned with PutCopyBuffer when done.
//
// Usage:
//
//	buf := buffers.GetCopyBuffer()
//	defer buffers.PutCopyBuffer(buf)
//	n, err := io.CopyBuffer(dst, src, *buf)
func GetCopyBuffer() *[]byte {
	atomic.AddInt64(&copyGets, 1)
	return copyPool.Get().(*[]byte)
}

// PutCopyBuffer returns a buffer to the pool for reuse.
// Only buffers of the correct size are pooled.
func PutCopyBuffer(buf *[]byte) {
	if buf != nil && len(*buf) == constants.CopyBufferSize {
		copyPool.Put(buf)
	}
}

// Copy is io.CopyBuffer with a pooled buffer.
func Copy(dst io.Writer, src io.Reader) (int64, error) {
	buf := GetCopyBuffer()
	defer PutCopyBuffer(buf)
	return io.CopyBuffer(dst, src, *buf)
}

// Stats holds buffer pool statistics, useful for debugging memory usage.
type Stats struct {
	CopyBufferSize  int   // Size of copy buffers (bytes)
	CopyAllocations int64 // Buffers created by the pool
	CopyGets        int64 // Buffers handed out (allocations + reuses)
}

// GetStats returns current buffer pool statistics.
func GetStats() Stats {
	return Stats{
		CopyBufferSize:  constants.CopyBufferSize,
		CopyAllocations: atomic.LoadInt64(&copyAllocations),
		CopyGets:        atomic.LoadInt64(&copyGets),
	}
}
