/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package buf implements the dispatcher's bounded read buffer and dual-mode
// (flat/vectored) write buffer, per spec.md §4.1.
package buf

import (
	"io"

	"github.com/valyala/bytebufferpool"
)

// ReadBuffer is a growable byte buffer capped at a configured limit. Bytes
// are appended at the tail by ReadFrom and consumed from the head by
// Advance.
type ReadBuffer struct {
	bb    *bytebufferpool.ByteBuffer
	off   int
	limit int
}

// NewReadBuffer returns a ReadBuffer capped at limit bytes of live content.
func NewReadBuffer(limit int) *ReadBuffer {
	return &ReadBuffer{bb: bytebufferpool.Get(), limit: limit}
}

// Release returns the backing storage to the pool. The ReadBuffer must not
// be used afterward.
func (r *ReadBuffer) Release() {
	bytebufferpool.Put(r.bb)
	r.bb = nil
}

// Len reports the number of unconsumed bytes.
func (r *ReadBuffer) Len() int { return len(r.bb.B) - r.off }

// Bytes returns the unconsumed bytes. The slice is invalidated by the next
// ReadFrom or Advance call.
func (r *ReadBuffer) Bytes() []byte { return r.bb.B[r.off:] }

// Backpressure reports whether the buffer has reached its configured limit,
// per spec.md §4.1/§5: when true, the dispatcher must not read more until
// a consumer (parser or body channel) advances the buffer.
func (r *ReadBuffer) Backpressure() bool { return r.Len() >= r.limit }

// Advance discards n consumed bytes from the head, compacting the backing
// array when it is entirely drained so the buffer does not grow unbounded
// across requests.
func (r *ReadBuffer) Advance(n int) {
	r.off += n
	if r.off == len(r.bb.B) {
		r.bb.Reset()
		r.off = 0
	}
}

// ReadFrom reads one chunk from rd into the tail of the buffer, returning
// the number of bytes read. It never reads past the configured limit.
func (r *ReadBuffer) ReadFrom(rd io.Reader) (int, error) {
	if r.off > 0 {
		r.bb.B = append(r.bb.B[:0], r.bb.B[r.off:]...)
		r.off = 0
	}
	room := r.limit - len(r.bb.B)
	if room <= 0 {
		return 0, nil
	}
	start := len(r.bb.B)
	grown := start + room
	if cap(r.bb.B) < grown {
		newBuf := make([]byte, grown)
		copy(newBuf, r.bb.B)
		r.bb.B = newBuf
	} else {
		r.bb.B = r.bb.B[:grown]
	}
	n, err := rd.Read(r.bb.B[start:grown])
	r.bb.B = r.bb.B[:start+n]
	return n, err
}

// Reset clears the buffer for reuse, keeping the pooled backing array.
func (r *ReadBuffer) Reset() {
	r.bb.Reset()
	r.off = 0
}
