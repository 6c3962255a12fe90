/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeWriter struct {
	buf []byte
}

func (w *fakeWriter) WriteBuf(p []byte)   { w.buf = append(w.buf, p...) }
func (w *fakeWriter) WriteChunk(p []byte) { w.buf = append(w.buf, p...) } // framing tested in internal/buf

func TestEOFEncoderPassesBytesThrough(t *testing.T) {
	w := &fakeWriter{}
	e := NewEOFEncoder()
	e.Encode(w, []byte("hello"))
	e.EncodeEOF(w)
	assert.Equal(t, "hello", string(w.buf))
}

func TestLengthEncoderTruncatesOverflow(t *testing.T) {
	w := &fakeWriter{}
	var violation string
	e := NewLengthEncoder(5, func(msg string) { violation = msg })
	e.Encode(w, []byte("hello world"))
	assert.Equal(t, "hello", string(w.buf))
	assert.NotEmpty(t, violation)
}

func TestLengthEncoderEmptyWriteIsNoop(t *testing.T) {
	w := &fakeWriter{}
	e := NewLengthEncoder(5, nil)
	e.Encode(w, nil)
	assert.Empty(t, w.buf)
}

func TestChunkedEncoderSkipsEmptyWrites(t *testing.T) {
	w := &fakeWriter{}
	e := NewChunkedEncoder()
	e.Encode(w, nil)
	assert.Empty(t, w.buf, "encoding empty bytes must be a no-op per spec")
	e.Encode(w, []byte("x"))
	e.EncodeEOF(w)
	assert.Equal(t, "x0\r\n\r\n", string(w.buf))
}
