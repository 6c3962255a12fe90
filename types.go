/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package h1d implements the HTTP/1.1 connection dispatcher: the
// per-connection state machine that multiplexes request parsing, body
// streaming, response encoding, keep-alive timing, and graceful shutdown
// over a single duplex byte stream.
package h1d

import (
	"context"

	"github.com/netpulse/h1d/hdr"
)

// BodySize is the response body's size hint, selecting the transfer
// encoding the encoder uses (spec.md §3).
type BodySize int

const (
	// BodyNone means no body at all: no framing header, an Eof encoder
	// that writes nothing.
	BodyNone BodySize = iota
	// BodySized means a Content-Length-framed body of a known byte count.
	BodySized
	// BodyStream means a chunked-transfer-coding body of unknown length.
	BodyStream
)

// BodyReader is the consumer-side handle for a request body, held inside
// Request and read by the service exactly once (spec.md §3 "Request
// body"). Recv yields the next chunk; done is true on the terminal
// message, at which point err is either nil (clean EOF) or the decode
// failure that terminated the stream.
type BodyReader interface {
	Recv() (data []byte, err error, done bool)
	// Close signals that the consumer is abandoning the body before EOF.
	// The dispatcher reacts by setting the connection force-close.
	Close()
}

// Request is the parsed request head plus a lazy body handle, passed to
// the service and expect-service.
type Request struct {
	Method  string
	Target  string
	Proto   string // "HTTP/1.1" or "HTTP/1.0"
	Header  *hdr.Header
	Body    BodyReader
	Context context.Context
}

// Response is what a Service produces: a status line, headers the
// encoder may inspect and mutate bookkeeping around (Content-Length,
// Transfer-Encoding, Connection, Date), and a lazy body.
//
// Body is one of:
//   - nil with Size == BodyNone: no body.
//   - a fixed []byte with Size == BodySized: Body.Next returns it once
//     then signals done.
//   - a streaming producer with Size == BodyStream: Body.Next is called
//     repeatedly until it signals done.
type Response struct {
	Status int
	Reason string
	Header *hdr.Header
	Size   BodySize
	Body   BodyProducer
}

// BodyProducer is the response body's lazy byte-sequence producer (spec.md
// §3 "Response body"). Next returns the next chunk of bytes to encode;
// done is true once the body is exhausted (data may be non-empty and done
// true in the same call, for a single final chunk).
type BodyProducer interface {
	Next() (data []byte, done bool, err error)
}

// staticBody is a BodyProducer wrapping a single pre-materialized buffer.
type staticBody struct {
	data []byte
	sent bool
}

// NewStaticBody returns a BodyProducer that yields p once, for a
// BodySized response.
func NewStaticBody(p []byte) BodyProducer { return &staticBody{data: p} }

func (b *staticBody) Next() ([]byte, bool, error) {
	if b.sent {
		return nil, true, nil
	}
	b.sent = true
	return b.data, true, nil
}

// Service is the application's request handler contract (spec.md §6
// "Service contract"): a function from a parsed request to a response.
// Its failure is mapped to a 500-series response by the dispatcher's
// configured error-to-response converter.
type Service func(req *Request) (*Response, error)

// ExpectService preprocesses Expect: 100-continue requests before the
// dispatcher emits the "100 Continue" interim response. Its failure is
// treated as a service failure.
type ExpectService func(req *Request) (*Request, error)

// ErrorToResponse maps a Service or ExpectService error to a response to
// write back to the client (spec.md §7).
type ErrorToResponse func(err error) *Response
