/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h1d

import (
	"sync/atomic"
	"time"
)

// TimeFormat is the HTTP-date layout (RFC 7231 §7.1.1.1), matching the
// teacher's own TimeFormat constant in types_header.go.
const TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// DateSource is the shared, cheaply-readable cached formatted Date of
// spec.md §9: a background goroutine refreshes it once a second so
// encode_head (encode.go) never calls time.Now()/Format per response. The
// dispatcher spec treats this as an external collaborator (spec.md §1);
// this is the concrete implementation cmd/h1dserver wires in.
type DateSource struct {
	current atomic.Value // string
	stop    chan struct{}
}

// NewDateSource starts the background refresh goroutine and returns a
// ready DateSource. Call Stop to release it.
func NewDateSource() *DateSource {
	d := &DateSource{stop: make(chan struct{})}
	d.current.Store(time.Now().UTC().Format(TimeFormat))
	go d.run()
	return d
}

func (d *DateSource) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.current.Store(time.Now().UTC().Format(TimeFormat))
		case <-d.stop:
			return
		}
	}
}

// Get returns the most recently formatted date string. Cheap: a single
// atomic load, no allocation, no syscall.
func (d *DateSource) Get() string {
	return d.current.Load().(string)
}

// Stop terminates the background refresh goroutine.
func (d *DateSource) Stop() { close(d.stop) }
