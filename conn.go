/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h1d

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/netpulse/h1d/internal/buf"
	"github.com/netpulse/h1d/internal/reqbody"
	"github.com/netpulse/h1d/internal/transfer"
)

// drainer flushes a connection's write buffer and remembers every write
// error across the connection's lifetime, so a single aggregated error
// can be logged once at teardown instead of once per flush (spec.md
// §4.7's drain happens many times per connection: at the end of every
// outer iteration, after each 100 Continue, and whenever the write buffer
// reaches backpressure while a response body is being encoded).
type drainer struct {
	wb   buf.WriteBuffer
	conn net.Conn
	errs *multierror.Error
}

func (d *drainer) drain() {
	if err := drainWrite(d.wb, d.conn); err != nil {
		d.errs = multierror.Append(d.errs, err)
	}
}

// dispatch runs the per-connection state machine of spec.md §4.7 to
// completion, on the caller's goroutine (one goroutine per connection is
// this translation's stand-in for the original's single cooperative
// task — see DESIGN.md's conn.go entry for the full translation note).
func dispatch(conn net.Conn, cfg *Config, limiter *rate.Limiter) {
	ctx := NewConnContext()
	log := cfg.Logger.With(zap.String("conn_id", ctx.ID))

	rb := buf.NewReadBuffer(cfg.ReadBufLimit)
	defer rb.Release()
	wb := newWriteBuffer(cfg)
	defer wb.Release()

	timer := NewKeepAliveTimer(cfg.RequestHeadTimeout)
	defer timer.Stop()

	dr := &drainer{wb: wb, conn: conn}
	defer func() {
		if err := dr.errs.ErrorOrNil(); err != nil {
			log.Warn("connection teardown encountered write errors", zap.Error(err))
		}
	}()

	onViolation := func(msg string) { log.Warn(msg) }

	for {
		switch ctx.Type() {
		case CTClose, CTUpgrade:
			log.Debug("connection terminal", zap.Stringer("type", ctx.Type()))
			return
		default: // CTInit, CTKeepAlive
			if ctx.ForceClose() {
				return
			}
			if rb.Len() == 0 {
				deadline := timer.Deadline()
				if ctx.Type() == CTKeepAlive {
					timer.Update(cfg.KeepAliveTimeout)
					deadline = timer.Deadline()
				}
				conn.SetReadDeadline(deadline)
				n, err := rb.ReadFrom(conn)
				if err != nil || n == 0 {
					if isTimeout(err) {
						if ctx.Type() == CTInit {
							log.Debug("closing connection", zap.Error(ErrSlowRequest))
						} else {
							log.Debug("closing connection", zap.Error(ErrIdleTimeout))
						}
					}
					return
				}
			}
		}

		// Parse requests until the read buffer is exhausted
		// (pipelining-friendly, serial — spec.md §4.7).
		for {
			if limiter != nil && !limiter.Allow() {
				ctx.SetForceClose()
				writeCanned(ctx, wb, 429, "Too Many Requests")
				break
			}

			head, n, err := decodeHead(ctx, rb.Bytes(), cfg.HeadLimit)
			if err != nil {
				status := 400
				if err == ErrHeaderTooLarge {
					status = 431
				}
				log.Debug("rejecting request", zap.Error(wrapProto(err, "decode head")))
				ctx.SetForceClose()
				writeCanned(ctx, wb, status, "")
				break
			}
			if head == nil {
				conn.SetReadDeadline(timer.Deadline())
				nr, rerr := rb.ReadFrom(conn)
				if rerr != nil || nr == 0 {
					dr.drain()
					return
				}
				continue
			}
			rb.Advance(n)
			timer.Update(cfg.KeepAliveTimeout)

			handleOneRequest(ctx, head, rb, dr, cfg, onViolation, log)

			if ctx.ForceClose() {
				break
			}
			if rb.Len() == 0 {
				break
			}
		}

		dr.drain()
		if ctx.ForceClose() {
			return
		}
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func newWriteBuffer(cfg *Config) buf.WriteBuffer {
	if cfg.ForceFlatBuf {
		return buf.NewFlatWriteBuffer(cfg.WriteBufLimit)
	}
	return buf.NewVectoredWriteBuffer(cfg.WriteBufLimit)
}

// drainWrite flushes wb into conn until empty, per spec.md §4.7's
// "end of outer iteration: drain the write buffer."
func drainWrite(wb buf.WriteBuffer, conn net.Conn) error {
	for wb.Len() > 0 {
		blocked, err := wb.TryWriteIO(conn)
		if err != nil {
			return err
		}
		if blocked {
			return nil
		}
	}
	return nil
}

// writeCanned writes a bodyless canned response head directly (used for
// 4xx protocol-error responses the dispatcher itself produces, before any
// service is ever invoked).
func writeCanned(ctx *ConnContext, wb buf.WriteBuffer, status int, reason string) {
	req := &Request{Proto: "HTTP/1.1"}
	resp := &Response{Status: status, Reason: reason, Size: BodyNone}
	_, _ = encodeHead(ctx, req, resp, nil, wb, nil)
}

// handleOneRequest runs the request handler then the response handler for
// one parsed request, per spec.md §4.7.
func handleOneRequest(ctx *ConnContext, head *parsedHead, rb *buf.ReadBuffer, dr *drainer, cfg *Config, onViolation transfer.Violation, log *zap.Logger) {
	req := head.req
	req.Context = context.Background()

	if ctx.IsExpectHeader() {
		if cfg.ExpectService != nil {
			updated, err := cfg.ExpectService(req)
			if err != nil {
				resp := cfg.ErrorToResponse(err)
				enc, encErr := encodeHead(ctx, req, resp, cfg.Date, dr.wb, onViolation)
				if encErr == nil {
					runResponseBody(resp, enc, dr)
				}
				ctx.SetForceClose()
				return
			}
			req = updated
		}
		dr.wb.WriteStatic([]byte("HTTP/1.1 100 Continue\r\n\r\n"))
		dr.drain()
	}

	bodyCh := attachBody(req)

	var wg sync.WaitGroup
	wg.Add(1)
	go pumpBody(dr.conn, rb, head.decoder, bodyCh, cfg.KeepAliveTimeout, &wg)

	resp, err := cfg.Service(req)

	bodyDrained := head.decoder.IsEOF()
	if !bodyDrained {
		// Service returned without reading to EOF: the number of unread
		// body bytes is unknown, so the connection cannot be reused
		// (spec.md §5 "Failure of the service future to drain the
		// request body"). req.Body.Close() unblocks a pump goroutine
		// waiting on the body channel's send; SetReadDeadline unblocks
		// one waiting on a slow/idle conn.Read. Both are joined via
		// wg.Wait() below before rb is touched again by the caller (or
		// released, on dispatch's way out) — rb has no synchronization
		// of its own, so the pump goroutine must be confirmed stopped
		// before anyone else uses or frees it.
		req.Body.Close()
		dr.conn.SetReadDeadline(time.Now())
		ctx.SetForceClose()
	}
	wg.Wait()

	if err != nil {
		resp = cfg.ErrorToResponse(err)
	}
	if resp == nil {
		resp = &Response{Status: 204, Size: BodyNone}
	}

	enc, encErr := encodeHead(ctx, req, resp, cfg.Date, dr.wb, onViolation)
	if encErr != nil {
		ctx.SetForceClose()
		if encErr == ErrStatusCodeInvalid {
			writeCanned(ctx, dr.wb, 500, "")
		}
		return
	}
	if bodyErr := runResponseBody(resp, enc, dr); bodyErr != nil {
		ctx.SetForceClose()
	}
}

// runResponseBody implements the response handler of spec.md §4.7: pumps
// resp.Body through enc into dr's write buffer, flushing to the socket
// whenever the buffer reaches backpressure. The original's writable()
// future race is collapsed to a direct synchronous drain call here, since
// each connection owns its own goroutine in this translation (see
// DESIGN.md).
func runResponseBody(resp *Response, enc transfer.Encoder, dr *drainer) error {
	if resp.Body == nil {
		enc.EncodeEOF(dr.wb)
		return nil
	}
	for {
		data, done, err := resp.Body.Next()
		if err != nil {
			// response body production failed mid-stream: nothing more
			// can be framed correctly, so the encoder's EOF marker would
			// lie about success. Best effort: stop producing and return
			// the error; the caller sets force-close, which tears the
			// connection down after whatever was buffered so far is
			// flushed.
			return err
		}
		if len(data) > 0 {
			enc.Encode(dr.wb, data)
		}
		if dr.wb.Backpressure() {
			dr.drain()
		}
		if done {
			enc.EncodeEOF(dr.wb)
			return nil
		}
	}
}

// pumpBody is the producer side of the request-body channel: it decodes
// from rb, reading more off conn as needed, feeding bodyCh until the
// decoder reaches EOF, errors, or the consumer goes away. It is the sole
// owner of rb for the duration of one request's body phase; the caller
// must not touch rb again until this goroutine has been observed to exit
// via wg. handleOneRequest always waits on wg, on the force-close path
// too, after unblocking the pump with req.Body.Close() and an expired
// read deadline.
func pumpBody(conn net.Conn, rb *buf.ReadBuffer, decoder transfer.Decoder, ch *reqbody.Channel, readTimeout time.Duration, wg *sync.WaitGroup) {
	defer wg.Done()
	for !decoder.IsEOF() {
		if rb.Len() == 0 {
			conn.SetReadDeadline(time.Now().Add(readTimeout))
			if _, err := rb.ReadFrom(conn); err != nil {
				_ = ch.FeedError(wrapProto(err, "read request body"))
				return
			}
		}
		data, n, eof, err := decoder.Decode(rb.Bytes())
		if err != nil {
			_ = ch.FeedError(wrapProto(err, "decode request body"))
			return
		}
		if len(data) > 0 {
			cp := append([]byte(nil), data...)
			rb.Advance(n)
			if ferr := ch.FeedData(cp); ferr != nil {
				return // consumer gone (reqbody.ErrConsumerGone)
			}
		} else if n > 0 {
			rb.Advance(n)
		}
		if eof {
			_ = ch.FeedEOF()
			return
		}
		if n == 0 && len(data) == 0 {
			// decoder made no progress on the bytes available; force
			// another read to make forward progress.
			conn.SetReadDeadline(time.Now().Add(readTimeout))
			if _, err := rb.ReadFrom(conn); err != nil {
				_ = ch.FeedError(err)
				return
			}
		}
	}
	_ = ch.FeedEOF()
}
