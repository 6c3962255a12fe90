/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package reqbody implements the request-body channel of spec.md §4.6: a
// single-producer (dispatcher) / single-consumer (service) bounded byte
// channel with a one-slot high-water mark.
package reqbody

import "errors"

// ErrConsumerGone is returned by a Feed* call when the consumer has
// stopped reading before EOF was delivered (the service dropped its body
// reader early). The dispatcher reacts by setting the connection's
// force-close flag, per spec.md §4.6/§4.7 and scenario 6 of §8.
var ErrConsumerGone = errors.New("reqbody: consumer gone before eof")

// msg is one element of the channel: either a data chunk, or a terminal
// signal (err == errEOF for normal end, any other err for an upstream
// decode failure).
type msg struct {
	data []byte
	err  error
}

// Channel is the producer/consumer handle pair. The zero value is not
// usable; construct with New.
//
// Capacity 2 models the "one-slot high-water mark" of spec.md §4.6:
// one slot may be in flight to the consumer while a second is queued
// behind it without blocking the producer; a third Feed call blocks until
// the consumer drains. That blocking send is the backpressure the
// dispatcher's body pump relies on; Ready() reports the same condition
// ahead of time for callers that want to check without blocking.
type Channel struct {
	ch     chan msg
	done   chan struct{} // closed when the consumer stops reading (Close)
	closed bool
}

// New returns a fresh request-body channel.
func New() *Channel {
	return &Channel{ch: make(chan msg, 2), done: make(chan struct{})}
}

// Ready reports whether the producer may feed without the risk of
// blocking further down the line: true once the channel has room for
// another message. The dispatcher's body pump does not call it; it feeds
// directly and lets the blocking send throttle its reads off the wire.
func (c *Channel) Ready() bool {
	return len(c.ch) < cap(c.ch)
}

// FeedData delivers a body chunk to the consumer. It never blocks the
// caller for longer than a single channel send against the 2-slot buffer;
// callers should check Ready() first to avoid queuing past the high-water
// mark. Returns ErrConsumerGone if the consumer has already stopped
// reading.
func (c *Channel) FeedData(p []byte) error {
	return c.feed(msg{data: p})
}

// FeedEOF delivers the end-of-body terminator.
func (c *Channel) FeedEOF() error {
	return c.feed(msg{err: errEOF})
}

// FeedError delivers an upstream error terminator (e.g. a malformed
// chunked body); the consumer observes it as the final message.
func (c *Channel) FeedError(err error) error {
	return c.feed(msg{err: err})
}

var errEOF = errors.New("reqbody: eof")

// IsEOF reports whether err (as returned by Recv) signals a clean
// end-of-body rather than an upstream error.
func IsEOF(err error) bool { return err == errEOF }

func (c *Channel) feed(m msg) error {
	select {
	case <-c.done:
		return ErrConsumerGone
	default:
	}
	select {
	case c.ch <- m:
		return nil
	case <-c.done:
		return ErrConsumerGone
	}
}

// Reader is the consumer-side handle, held by the request passed to the
// service.
type Reader struct {
	c        *Channel
	finished bool // a terminal message has been returned
}

// Reader returns the consumer-side handle for c. Only one should be
// constructed per Channel (single-consumer).
func (c *Channel) Reader() *Reader { return &Reader{c: c} }

// Recv yields the next chunk. done is true once the terminal message (EOF
// or error) has been returned; a subsequent Recv after done always
// returns (nil, nil, true).
func (r *Reader) Recv() (data []byte, err error, done bool) {
	if r.finished {
		return nil, nil, true
	}
	m, ok := <-r.c.ch
	if !ok {
		return nil, nil, true
	}
	if m.err != nil {
		r.finished = true
		return nil, m.err, true
	}
	return m.data, nil, false
}

// Close signals the producer that the consumer has stopped reading before
// EOF (the service dropped the body early, spec.md §8 scenario 6). Safe
// to call after a clean EOF as a no-op.
func (r *Reader) Close() {
	if r.c.closed {
		return
	}
	r.c.closed = true
	close(r.c.done)
}
