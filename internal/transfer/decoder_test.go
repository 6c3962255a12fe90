/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLengthDecoder(t *testing.T) {
	d := NewLengthDecoder(5)
	data, n, eof, err := d.Decode([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, 5, n)
	assert.True(t, eof)
	assert.True(t, d.IsEOF())
}

func TestLengthDecoderAcrossCalls(t *testing.T) {
	d := NewLengthDecoder(10)
	data, n, eof, err := d.Decode([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, 5, n)
	assert.False(t, eof)

	data, n, eof, err = d.Decode([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))
	assert.Equal(t, 5, n)
	assert.True(t, eof)
}

func TestEOFDecoderIsImmediatelyDone(t *testing.T) {
	d := NewEOFDecoder()
	data, n, eof, err := d.Decode([]byte("anything"))
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Equal(t, 0, n)
	assert.True(t, eof)
}

func TestChunkedDecoderSingleChunk(t *testing.T) {
	d := NewChunkedDecoder()
	input := []byte("5\r\nhello\r\n0\r\n\r\n")

	data, n, eof, err := d.Decode(input)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.False(t, eof)

	data, _, eof, err = d.Decode(input[n:])
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.True(t, eof)
	assert.True(t, d.IsEOF())
}

func TestChunkedDecoderMultipleChunks(t *testing.T) {
	d := NewChunkedDecoder()
	input := []byte("5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n")

	var got []byte
	total := 0
	for {
		data, n, eof, err := d.Decode(input[total:])
		require.NoError(t, err)
		got = append(got, data...)
		total += n
		if eof {
			break
		}
		if n == 0 {
			t.Fatal("decoder made no progress")
		}
	}
	assert.Equal(t, "hello world", string(got))
}

func TestChunkedDecoderSplitAcrossReads(t *testing.T) {
	d := NewChunkedDecoder()
	part1 := []byte("5\r\nhel")
	part2 := []byte("lo\r\n0\r\n\r\n")

	data, n, eof, err := d.Decode(part1)
	require.NoError(t, err)
	assert.Equal(t, "hel", string(data))
	assert.False(t, eof)
	assert.Equal(t, len(part1), n)

	data, n, eof, err = d.Decode(part2)
	require.NoError(t, err)
	assert.Equal(t, "lo", string(data))
	assert.False(t, eof)

	_, _, eof, err = d.Decode(part2[n:])
	require.NoError(t, err)
	assert.True(t, eof)
}

func TestChunkedDecoderMalformedHex(t *testing.T) {
	d := NewChunkedDecoder()
	_, _, _, err := d.Decode([]byte("zz\r\ndata\r\n"))
	assert.ErrorIs(t, err, ErrMalformedChunk)
}

func TestChunkedDecoderDiscardsTrailers(t *testing.T) {
	d := NewChunkedDecoder()
	input := []byte("0\r\nX-Trailer: a\r\n\r\n")
	data, _, eof, err := d.Decode(input)
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.True(t, eof)
}
