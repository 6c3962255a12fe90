/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package buf

import (
	"io"
	"net"
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// WriteBuffer is the dispatcher's outbound buffer abstraction, per spec.md
// §4.1. Two implementations exist: a flat contiguous buffer and a vectored
// (net.Buffers-backed) segment list; both expose the same operations so
// the dispatcher is indifferent to which one it was handed.
type WriteBuffer interface {
	// WriteStatic appends a static (non-owned) byte slice without copying
	// when the implementation supports it.
	WriteStatic(p []byte)
	// WriteBuf appends an owned copy of p.
	WriteBuf(p []byte)
	// WriteChunk appends p framed as one chunked-transfer-coding chunk:
	// "<hex-len>\r\n" + p + "\r\n". Empty p is a no-op (see spec.md §4.2).
	WriteChunk(p []byte)
	// WriteHead gives f a fresh flat scratch buffer to write a response
	// head into atomically: if f returns an error the scratch is
	// discarded rather than partially appended, preserving P5 (no
	// partial heads).
	WriteHead(f func(scratch *[]byte) error) error
	// Len reports the total unflushed byte length.
	Len() int
	// Backpressure reports Len() >= the configured limit.
	Backpressure() bool
	// TryWriteIO drains buffered bytes into w until the buffer is empty
	// (returns false) or w reports it would block (returns true).
	TryWriteIO(w WouldBlockWriter) (wouldBlock bool, err error)
	// Release returns pooled resources. The WriteBuffer must not be used
	// afterward.
	Release()
}

// WouldBlockWriter is the minimal write-side contract the write buffer
// needs from the connection: a Write that can report a would-block
// condition via a net.Error whose Timeout() is true, matching how the
// dispatcher treats a non-blocking socket (spec.md §6 Ingress socket).
type WouldBlockWriter interface {
	Write(p []byte) (int, error)
}

func isWouldBlock(err error) bool {
	if err == nil {
		return false
	}
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// flatWriteBuffer coalesces chunk-prefix and data fragments into a single
// contiguous buffer (spec.md §9 "Write buffer dual mode"). The dispatcher
// uses it only when Config.ForceFlatBuf is set; it does not probe the I/O
// for vectored-write support, so every other connection gets the vectored
// variant, whose net.Buffers write falls back to sequential Write calls on
// I/O without writev.
type flatWriteBuffer struct {
	bb    *bytebufferpool.ByteBuffer
	limit int
}

// NewFlatWriteBuffer returns a WriteBuffer backed by one contiguous buffer.
func NewFlatWriteBuffer(limit int) WriteBuffer {
	return &flatWriteBuffer{bb: bytebufferpool.Get(), limit: limit}
}

func (w *flatWriteBuffer) WriteStatic(p []byte) { w.bb.Write(p) }
func (w *flatWriteBuffer) WriteBuf(p []byte)    { w.bb.Write(p) }

func (w *flatWriteBuffer) WriteChunk(p []byte) {
	if len(p) == 0 {
		return
	}
	w.bb.B = strconv.AppendInt(w.bb.B, int64(len(p)), 16)
	w.bb.WriteString("\r\n")
	w.bb.Write(p)
	w.bb.WriteString("\r\n")
}

func (w *flatWriteBuffer) WriteHead(f func(scratch *[]byte) error) error {
	scratch := bytebufferpool.Get()
	defer bytebufferpool.Put(scratch)
	if err := f(&scratch.B); err != nil {
		return err
	}
	w.bb.Write(scratch.B)
	return nil
}

func (w *flatWriteBuffer) Len() int           { return len(w.bb.B) }
func (w *flatWriteBuffer) Backpressure() bool { return w.Len() >= w.limit }
func (w *flatWriteBuffer) Release()           { bytebufferpool.Put(w.bb) }

func (w *flatWriteBuffer) TryWriteIO(conn WouldBlockWriter) (bool, error) {
	for len(w.bb.B) > 0 {
		n, err := conn.Write(w.bb.B)
		if n > 0 {
			w.bb.B = w.bb.B[:copy(w.bb.B, w.bb.B[n:])]
		}
		if err != nil {
			if isWouldBlock(err) {
				return true, nil
			}
			return false, err
		}
	}
	return false, nil
}

// vectoredWriteBuffer keeps chunk-prefix and data fragments as separate
// segments and hands them to net.Buffers for a single gather (writev)
// syscall, avoiding the flat variant's copy.
type vectoredWriteBuffer struct {
	segs  net.Buffers
	total int
	limit int
}

// NewVectoredWriteBuffer returns a WriteBuffer backed by a net.Buffers
// segment list, for I/O that supports vectored (writev-style) writes.
func NewVectoredWriteBuffer(limit int) WriteBuffer {
	return &vectoredWriteBuffer{limit: limit}
}

func (w *vectoredWriteBuffer) append(p []byte) {
	if len(p) == 0 {
		return
	}
	w.segs = append(w.segs, p)
	w.total += len(p)
}

func (w *vectoredWriteBuffer) WriteStatic(p []byte) { w.append(p) }

func (w *vectoredWriteBuffer) WriteBuf(p []byte) {
	cp := make([]byte, len(p))
	copy(cp, p)
	w.append(cp)
}

func (w *vectoredWriteBuffer) WriteChunk(p []byte) {
	if len(p) == 0 {
		return
	}
	prefix := strconv.AppendInt(nil, int64(len(p)), 16)
	prefix = append(prefix, '\r', '\n')
	w.append(prefix)
	cp := make([]byte, len(p))
	copy(cp, p)
	w.append(cp)
	w.append([]byte("\r\n"))
}

func (w *vectoredWriteBuffer) WriteHead(f func(scratch *[]byte) error) error {
	scratch := bytebufferpool.Get()
	defer bytebufferpool.Put(scratch)
	if err := f(&scratch.B); err != nil {
		return err
	}
	w.WriteBuf(scratch.B)
	return nil
}

func (w *vectoredWriteBuffer) Len() int           { return w.total }
func (w *vectoredWriteBuffer) Backpressure() bool { return w.total >= w.limit }
func (w *vectoredWriteBuffer) Release()           { w.segs = nil; w.total = 0 }

// TryWriteIO hands the remaining segments to net.Buffers.WriteTo, which
// issues a single writev syscall when conn is *net.TCPConn (or any type
// implementing the unexported buffer-writer interface net.Buffers probes
// for) and falls back to sequential Write calls otherwise. Either way,
// segment ordering is preserved.
func (w *vectoredWriteBuffer) TryWriteIO(conn WouldBlockWriter) (bool, error) {
	if len(w.segs) == 0 {
		return false, nil
	}
	asWriter, ok := conn.(io.Writer)
	if !ok {
		asWriter = writerFunc(conn.Write)
	}
	n, err := w.segs.WriteTo(asWriter)
	w.total -= int(n)
	if w.total < 0 {
		w.total = 0
	}
	if err != nil {
		if isWouldBlock(err) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }
