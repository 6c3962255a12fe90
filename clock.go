/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h1d

import (
	"sync"
	"time"
)

// KeepAliveTimer is the single mutable deadline of spec.md §4.8, shared
// across one connection's lifetime. It drives the TLS accept timeout
// (external), the slow-connection (first request) timeout, the
// keep-alive idle timeout, and the header read deadline — all the same
// underlying mechanism, just reset at different points in the dispatcher
// loop. There is no explicit cancel token: each race point either
// resolves before the deadline or the deadline fires.
type KeepAliveTimer struct {
	mu       sync.Mutex
	deadline time.Time
	timer    *time.Timer
}

// NewKeepAliveTimer returns a timer with an initial deadline of now+d.
func NewKeepAliveTimer(d time.Duration) *KeepAliveTimer {
	k := &KeepAliveTimer{deadline: time.Now().Add(d)}
	k.timer = time.NewTimer(d)
	return k
}

// Update resets the deadline to now+d, per spec.md's "update(instant)
// resets it".
func (k *KeepAliveTimer) Update(d time.Duration) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.timer.Stop() {
		select {
		case <-k.timer.C:
		default:
		}
	}
	k.deadline = time.Now().Add(d)
	k.timer.Reset(d)
}

// C returns the channel that fires once the current deadline elapses, for
// callers that race the deadline in a select. dispatch does not use it; it
// passes Deadline to SetReadDeadline instead.
func (k *KeepAliveTimer) C() <-chan time.Time {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.timer.C
}

// Deadline returns the wall-clock instant the timer is currently set to
// fire at, for passing straight to net.Conn.SetReadDeadline/SetWriteDeadline.
func (k *KeepAliveTimer) Deadline() time.Time {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.deadline
}

// Stop releases the underlying timer resource. Safe to call multiple
// times.
func (k *KeepAliveTimer) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.timer.Stop()
}
