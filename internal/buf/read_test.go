/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package buf

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBufferFillAndAdvance(t *testing.T) {
	r := NewReadBuffer(16)
	defer r.Release()

	n, err := r.ReadFrom(bytes.NewReader([]byte("hello world")))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, 11, r.Len())
	assert.Equal(t, "hello world", string(r.Bytes()))

	r.Advance(6)
	assert.Equal(t, "world", string(r.Bytes()))
}

func TestReadBufferBackpressure(t *testing.T) {
	r := NewReadBuffer(4)
	defer r.Release()

	_, err := r.ReadFrom(bytes.NewReader([]byte("abcd")))
	require.NoError(t, err)
	assert.True(t, r.Backpressure())

	n, err := r.ReadFrom(bytes.NewReader([]byte("more")))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "buffer at limit must not grow further")
}

func TestReadBufferCompactsWhenDrained(t *testing.T) {
	r := NewReadBuffer(8)
	defer r.Release()

	_, _ = r.ReadFrom(bytes.NewReader([]byte("abcd")))
	r.Advance(4)
	assert.Equal(t, 0, r.Len())

	_, err := r.ReadFrom(bytes.NewReader([]byte("efgh")))
	require.NoError(t, err)
	assert.Equal(t, "efgh", string(r.Bytes()))
}
