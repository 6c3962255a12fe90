/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package buf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	written []byte
	max     int // max bytes accepted per Write call, 0 = unlimited
}

func (f *fakeConn) Write(p []byte) (int, error) {
	n := len(p)
	if f.max > 0 && n > f.max {
		n = f.max
	}
	f.written = append(f.written, p[:n]...)
	return n, nil
}

func TestFlatWriteBufferChunkFraming(t *testing.T) {
	w := NewFlatWriteBuffer(1 << 20)
	defer w.Release()

	w.WriteChunk([]byte("hello"))
	w.WriteChunk(nil) // no-op per spec.md §4.2

	conn := &fakeConn{}
	blocked, err := w.TryWriteIO(conn)
	require.NoError(t, err)
	assert.False(t, blocked)
	assert.Equal(t, "5\r\nhello\r\n", string(conn.written))
	assert.Equal(t, 0, w.Len())
}

func TestFlatWriteBufferPartialWritesDrainFully(t *testing.T) {
	w := NewFlatWriteBuffer(1 << 20)
	defer w.Release()

	w.WriteStatic([]byte("0123456789"))
	conn := &fakeConn{max: 3}
	blocked, err := w.TryWriteIO(conn)
	require.NoError(t, err)
	assert.False(t, blocked)
	assert.Equal(t, "0123456789", string(conn.written))
}

func TestFlatWriteBufferBackpressure(t *testing.T) {
	w := NewFlatWriteBuffer(4)
	defer w.Release()
	w.WriteStatic([]byte("abcd"))
	assert.True(t, w.Backpressure())
}

func TestFlatWriteHeadDiscardsOnError(t *testing.T) {
	w := NewFlatWriteBuffer(1 << 20)
	defer w.Release()

	err := w.WriteHead(func(scratch *[]byte) error {
		*scratch = append(*scratch, "HTTP/1.1 200 OK\r\n"...)
		return assertErr
	})
	require.Error(t, err)
	assert.Equal(t, 0, w.Len(), "a failed head write must leave no partial head (P5)")
}

var assertErr = assertError("boom")

type assertError string

func (e assertError) Error() string { return string(e) }

func TestVectoredWriteBufferChunkFraming(t *testing.T) {
	w := NewVectoredWriteBuffer(1 << 20)
	defer w.Release()

	w.WriteChunk([]byte("hi"))
	conn := &fakeConn{}
	blocked, err := w.TryWriteIO(conn)
	require.NoError(t, err)
	assert.False(t, blocked)
	assert.Equal(t, "2\r\nhi\r\n", string(conn.written))
}
