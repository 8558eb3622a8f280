// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

// Package bufferpool offers reference-counted, reusable byte buffers for
// receiving datagrams.
package bufferpool

import (
	"sync"
	"sync/atomic"
)

// Pool maintains a pool of buffers. It offers a new buffer when one is
// unavailable.
//
// A Pool must not be copied after first use.
type Pool struct {
	// Size is the size of the buffers in this pool.
	Size int

	base sync.Pool
}

// Get returns a buffer, allocating one if one is not available. The returned
// buffer is reset to its full size and has a reference count of 1.
//
// The caller should return the buffer to the pool by calling its Release method
// when done with it.
func (bp *Pool) Get() *Buffer {
	b, ok := bp.base.Get().(*Buffer)
	if !ok || len(b.bytes) != bp.Size {
		b = &Buffer{
			bytes: make([]byte, bp.Size),
		}
	}

	b.pool = bp
	b.size = len(b.bytes)
	atomic.StoreInt32(&b.refs, 1)
	return b
}

// Buffer contains a byte buffer that can be released into a Pool for reuse.
//
// Buffer is reference counted, and can be retained and released appropriately.
// Failure to release Buffer will not cause a memory leak, but will prevent the
// reuse of the Buffer.
type Buffer struct {
	refs int32

	bytes []byte
	size  int

	pool *Pool
}

// Bytes returns this buffer's byte slice, limited to its length.
func (b *Buffer) Bytes() []byte { return b.bytes[:b.size] }

// Len returns the number of bytes in the buffer.
func (b *Buffer) Len() int { return b.size }

// Cap returns the buffer's full size.
func (b *Buffer) Cap() int { return len(b.bytes) }

// Truncate caps the number of bytes returned by Bytes. A size outside of
// [0, Cap] is clamped.
func (b *Buffer) Truncate(size int) {
	switch {
	case size < 0:
		size = 0
	case size > len(b.bytes):
		size = len(b.bytes)
	}
	b.size = size
}

// Retain increases the Buffer's reference count. It should be accompanied by
// a Release call to reuse the buffer when it's finished.
func (b *Buffer) Retain() { atomic.AddInt32(&b.refs, 1) }

// Release decrements the Buffer's reference count. When it reaches zero, the
// Buffer is returned to its pool and must no longer be used.
//
// Release is safe for concurrent use.
func (b *Buffer) Release() {
	switch refs := atomic.AddInt32(&b.refs, -1); {
	case refs > 0:
		return
	case refs < 0:
		panic("bufferpool: Buffer released too many times")
	}

	var pool *Pool
	pool, b.pool = b.pool, nil
	if pool != nil {
		pool.base.Put(b)
	}
}
