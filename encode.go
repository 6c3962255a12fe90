/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h1d

import (
	"strconv"
	"strings"

	"github.com/netpulse/h1d/internal/buf"
	"github.com/netpulse/h1d/internal/transfer"
)

// statusText covers the statuses this dispatcher itself ever writes a
// canned response for, plus common service-facing ones; anything else
// falls back to a generic reason the caller's own Response.Reason should
// normally have already set.
var statusText = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	204: "No Content",
	400: "Bad Request",
	404: "Not Found",
	429: "Too Many Requests",
	431: "Request Header Fields Too Large",
	500: "Internal Server Error",
}

func reasonFor(status int, given string) string {
	if given != "" {
		return given
	}
	if r, ok := statusText[status]; ok {
		return r
	}
	return "Status"
}

// excludedFromWrite returns the header names that must not be copied
// verbatim from the service's header map: only "connection", and only
// once force-close has been decided, since the dispatcher writes its own
// "connection: close" in that case (spec.md §4.4 step 2/3). A
// service-provided Date header is never excluded — it is simply left in
// place and the dispatcher's own skip_date bookkeeping (see encodeHead)
// avoids appending a second one.
func excludedFromWrite(forceClose bool) map[string]bool {
	if !forceClose {
		return nil
	}
	return map[string]bool{"connection": true}
}

// encodeHead implements spec.md §4.4: serializes the status line and
// headers into the write buffer's head scratch, selects the response
// body encoder, and updates ctx's connection type / force-close
// bookkeeping. On success, resp.Header has been cleared with Reset; it is
// not placed into any pool or into ConnContext's header arena. Callers
// must not rely on its contents afterward.
func encodeHead(ctx *ConnContext, req *Request, resp *Response, date *DateSource, wb buf.WriteBuffer, onViolation transfer.Violation) (transfer.Encoder, error) {
	if resp.Status >= 100 && resp.Status < 200 && resp.Status != 101 {
		return nil, ErrStatusCodeInvalid
	}

	isConnect2xx := ctx.IsConnectMethod() && resp.Status >= 200 && resp.Status < 300

	var (
		skipLen    bool
		skipDate   bool
		contentLen uint64
		hasLen     bool
		isChunked  bool
	)

	h := resp.Header
	if h != nil {
		if cl := h.Get("content-length"); cl != "" {
			if n, err := strconv.ParseUint(cl, 10, 64); err == nil {
				contentLen = n
				hasLen = true
				skipLen = true
			}
		}
		if te := h.Get("transfer-encoding"); te != "" {
			skipLen = true
			if strings.Contains(strings.ToLower(te), "chunked") {
				isChunked = true
			}
		}
		if !ctx.ForceClose() {
			if h.Has("connection") {
				switch {
				case h.ConnectionHasToken("close"):
					ctx.SetType(CTClose)
				case h.ConnectionHasToken("keep-alive"):
					ctx.SetType(CTKeepAlive)
				}
			}
		}
		if h.Has("date") {
			skipDate = true
		}
	}

	if isConnect2xx {
		// RFC 7231 §4.3.6: a 2xx response to CONNECT forbids both
		// Content-Length and Transfer-Encoding; framing is always
		// close-delimited (supplemented feature, SPEC_FULL.md §4).
		skipLen = true
		hasLen = false
		isChunked = false
	}

	if resp.Status == 101 {
		ctx.SetType(CTUpgrade)
	}

	var enc transfer.Encoder
	switch {
	case isConnect2xx:
		enc = transfer.NewEOFEncoder()
	case skipLen && hasLen:
		enc = transfer.NewLengthEncoder(contentLen, onViolation)
	case skipLen && isChunked:
		enc = transfer.NewChunkedEncoder()
	case skipLen:
		// Transfer-Encoding present but not chunked (unusual); treat as
		// close-delimited since we don't know its framing.
		enc = transfer.NewEOFEncoder()
	default:
		switch resp.Size {
		case BodyNone:
			enc = transfer.NewEOFEncoder()
		case BodySized:
			enc = transfer.NewEOFEncoder() // overwritten below once length is known
		case BodyStream:
			enc = transfer.NewChunkedEncoder()
		}
	}

	err := wb.WriteHead(func(scratch *[]byte) error {
		*scratch = append(*scratch, req.Proto...)
		*scratch = append(*scratch, ' ')
		*scratch = strconv.AppendInt(*scratch, int64(resp.Status), 10)
		*scratch = append(*scratch, ' ')
		*scratch = append(*scratch, reasonFor(resp.Status, resp.Reason)...)
		*scratch = append(*scratch, '\r', '\n')

		if !skipLen && !isConnect2xx {
			switch resp.Size {
			case BodySized:
				n := bodyLen(resp.Body)
				enc = transfer.NewLengthEncoder(n, onViolation)
				*scratch = append(*scratch, "content-length: "...)
				*scratch = strconv.AppendUint(*scratch, n, 10)
				*scratch = append(*scratch, '\r', '\n')
			case BodyStream:
				*scratch = append(*scratch, "transfer-encoding: chunked\r\n"...)
			}
		}

		if h != nil {
			if err := h.WriteTo(sliceWriter{scratch}, excludedFromWrite(ctx.ForceClose())); err != nil {
				return err
			}
		}

		if ctx.ForceClose() {
			*scratch = append(*scratch, "connection: close\r\n"...)
		}
		if !skipDate && date != nil {
			*scratch = append(*scratch, "date: "...)
			*scratch = append(*scratch, date.Get()...)
			*scratch = append(*scratch, '\r', '\n')
		}
		*scratch = append(*scratch, '\r', '\n')
		return nil
	})
	if err != nil {
		return nil, err
	}

	if h != nil {
		h.Reset()
	}

	return enc, nil
}

// bodyLen peeks the declared length of a BodySized body. Static bodies
// (NewStaticBody) know their length up front; any other BodyProducer used
// with BodySized must implement Len() int (otherwise the length is 0).
func bodyLen(b BodyProducer) uint64 {
	if sb, ok := b.(*staticBody); ok {
		return uint64(len(sb.data))
	}
	if lh, ok := b.(interface{ Len() int }); ok {
		return uint64(lh.Len())
	}
	return 0
}

// sliceWriter adapts a *[]byte to io.Writer for hdr.Header.WriteTo.
type sliceWriter struct{ p *[]byte }

func (s sliceWriter) Write(p []byte) (int, error) {
	*s.p = append(*s.p, p...)
	return len(p), nil
}
