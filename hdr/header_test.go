/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package hdr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderCaseInsensitive(t *testing.T) {
	h := New()
	h.Add("Content-Type", "text/plain")
	require.Equal(t, "text/plain", h.Get("content-type"))
	require.Equal(t, "text/plain", h.Get("CONTENT-TYPE"))
}

func TestHeaderAddPreservesOrderAndMultipleValues(t *testing.T) {
	h := New()
	h.Add("Set-Cookie", "a=1")
	h.Add("Set-Cookie", "b=2")
	h.Add("X-Trace", "id-1")

	assert.Equal(t, []string{"a=1", "b=2"}, h.Values("set-cookie"))

	var keys []string
	h.Range(func(k, v string) bool { keys = append(keys, k); return true })
	assert.Equal(t, []string{"set-cookie", "set-cookie", "x-trace"}, keys)
}

func TestHeaderSetReplaces(t *testing.T) {
	h := New()
	h.Add("Host", "a")
	h.Set("Host", "b")
	require.Equal(t, []string{"b"}, h.Values("host"))
}

func TestHeaderDelRemovesFromOrder(t *testing.T) {
	h := New()
	h.Add("A", "1")
	h.Add("B", "2")
	h.Del("a")
	require.False(t, h.Has("a"))
	require.Equal(t, 1, h.Len())
}

func TestHeaderResetClearsButKeepsCapacity(t *testing.T) {
	h := New()
	h.Add("A", "1")
	h.Add("B", "2")
	h.Reset()
	require.Equal(t, 0, h.Len())
	require.GreaterOrEqual(t, cap(h.keys), 2)
	h.Add("C", "3")
	require.Equal(t, "3", h.Get("c"))
}

func TestHeaderWriteToOrderAndExclusion(t *testing.T) {
	h := New()
	h.Add("Host", "example.com")
	h.Add("Connection", "close")

	var sb strings.Builder
	require.NoError(t, h.WriteTo(&sb, map[string]bool{"connection": true}))
	assert.Equal(t, "host: example.com\r\n", sb.String())
}

func TestHeaderClone(t *testing.T) {
	h := New()
	h.Add("A", "1")
	c := h.Clone()
	c.Add("A", "2")
	require.Equal(t, []string{"1"}, h.Values("a"))
	require.Equal(t, []string{"1", "2"}, c.Values("a"))
}

func TestConnectionTokensAndHasToken(t *testing.T) {
	h := New()
	h.Add("Connection", "Keep-Alive, Upgrade")
	assert.True(t, h.ConnectionHasToken("upgrade"))
	assert.True(t, h.ConnectionHasToken("keep-alive"))
	assert.False(t, h.ConnectionHasToken("close"))
	assert.Equal(t, []string{"keep-alive", "upgrade"}, h.ConnectionTokens())
}

func TestValidFieldNameAndValue(t *testing.T) {
	assert.True(t, ValidFieldName("Content-Length"))
	assert.False(t, ValidFieldName("Bad Name"))
	assert.True(t, ValidFieldValue("hello world"))
	assert.False(t, ValidFieldValue("bad\x00value"))
}
