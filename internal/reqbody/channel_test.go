/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package reqbody

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelDeliversDataThenEOF(t *testing.T) {
	c := New()
	r := c.Reader()

	require.NoError(t, c.FeedData([]byte("hello")))
	require.NoError(t, c.FeedEOF())

	data, err, done := r.Recv()
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, "hello", string(data))

	_, err, done = r.Recv()
	assert.True(t, IsEOF(err))
	assert.True(t, done)
}

func TestChannelReadyReflectsHighWaterMark(t *testing.T) {
	c := New()
	assert.True(t, c.Ready())
	require.NoError(t, c.FeedData([]byte("a")))
	assert.True(t, c.Ready())
	require.NoError(t, c.FeedData([]byte("b")))
	assert.False(t, c.Ready(), "channel is at its 2-slot high-water mark")
}

func TestChannelFeedErrorIsTerminal(t *testing.T) {
	c := New()
	r := c.Reader()
	boom := assertErr("boom")
	require.NoError(t, c.FeedError(boom))

	_, err, done := r.Recv()
	assert.Equal(t, boom, err)
	assert.True(t, done)
}

func TestChannelConsumerGoneRejectsFurtherFeeds(t *testing.T) {
	c := New()
	r := c.Reader()
	r.Close()

	err := c.FeedData([]byte("late"))
	assert.ErrorIs(t, err, ErrConsumerGone)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
