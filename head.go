/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h1d

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/evanphx/wildcat"

	"github.com/netpulse/h1d/hdr"
	"github.com/netpulse/h1d/internal/reqbody"
	"github.com/netpulse/h1d/internal/transfer"
)

// HeadLimit bounds the request-head parser, per spec.md §6's
// HEADER_LIMIT: the max number of headers and the max header-section byte
// count.
type HeadLimit struct {
	MaxHeaders int
	MaxBytes   int
}

// DefaultHeadLimit matches the teacher's MaxHeaderBytes-scale defaults.
var DefaultHeadLimit = HeadLimit{MaxHeaders: 100, MaxBytes: 1 << 20}

// parsedHead is the head parser's success result: the parsed request plus
// the decoder chosen for its body, per spec.md §4.3.
type parsedHead struct {
	req     *Request
	decoder transfer.Decoder
}

// decodeHead implements Context.decode_head from spec.md §4.3: parses a
// request head out of buf, returning (nil, 0, nil) if more bytes are
// needed, a *parsedHead and the number of head bytes consumed on success,
// or an error (ErrHeaderTooLarge / ErrBadRequest) distinguishing the two
// failure kinds the dispatcher maps to different canned responses.
//
// HEADER_LIMIT is enforced independently of wildcat's own parsing (a
// bytes.Index scan for the terminating CRLFCRLF, plus a header-line
// count) before delegating to wildcat.Parse, since wildcat's internal
// limit behavior cannot be verified without running the library.
func decodeHead(ctx *ConnContext, buf []byte, limit HeadLimit) (*parsedHead, int, error) {
	headEnd := bytes.Index(buf, []byte("\r\n\r\n"))
	if headEnd < 0 {
		if len(buf) > limit.MaxBytes {
			return nil, 0, ErrHeaderTooLarge
		}
		return nil, 0, nil // need more bytes
	}
	headBytes := headEnd + 4
	if headBytes > limit.MaxBytes {
		return nil, 0, ErrHeaderTooLarge
	}
	if bytes.Count(buf[:headEnd], []byte("\r\n")) > limit.MaxHeaders {
		return nil, 0, ErrHeaderTooLarge
	}

	p := wildcat.NewHTTPParser()
	bodyOffset, err := p.Parse(buf[:headBytes])
	if err != nil {
		return nil, 0, ErrBadRequest
	}
	if bodyOffset != headBytes {
		// wildcat's own framing disagrees with our CRLFCRLF scan; treat
		// as malformed rather than silently trusting either source.
		return nil, 0, ErrBadRequest
	}

	// Clear the previous request's flags and header arena now that a full
	// head has been isolated, so a pipelined request never inherits stale
	// state from the one before it (spec.md §3's reused-and-cleared
	// invariant).
	ctx.resetPerRequest()

	h := ctx.Header()
	for _, f := range p.Headers {
		name, value := string(f.Key), string(f.Value)
		if !hdr.ValidFieldName(name) || !hdr.ValidFieldValue(value) {
			return nil, 0, ErrBadRequest
		}
		h.Add(name, value)
	}

	req := &Request{
		Method: string(p.Method),
		Target: string(p.Path),
		Proto:  string(p.Version),
		Header: h,
	}

	applyConnectionSemantics(ctx, req, h)

	decoder, err := chooseDecoder(req, h)
	if err != nil {
		return nil, 0, err
	}

	return &parsedHead{req: req, decoder: decoder}, headBytes, nil
}

// applyConnectionSemantics updates ctx's expect/connect-method flags and
// connection type from the parsed request, per spec.md §4.3.
func applyConnectionSemantics(ctx *ConnContext, req *Request, h interface {
	ConnectionTokens() []string
	ConnectionHasToken(string) bool
	Get(string) string
}) {
	if strings.EqualFold(req.Method, "CONNECT") {
		ctx.isConnectMethod = true
	}
	if expect := h.Get("expect"); strings.EqualFold(expect, "100-continue") {
		ctx.isExpectHeader = true
	}

	if h.ConnectionHasToken("upgrade") {
		ctx.isUpgradeWanted = true
	}

	// Connection type here reflects only close/keep-alive/HTTP-version
	// defaults. Upgrade is never set from the request alone: per the
	// resolved Open Question in spec.md §9, the connection transitions
	// to Upgrade only once the response status is exactly 101 (see
	// encode.go). Until then IsUpgradeWanted carries the request's
	// intent forward.
	switch {
	case h.ConnectionHasToken("close"):
		ctx.SetType(CTClose)
	case h.ConnectionHasToken("keep-alive"):
		ctx.SetType(CTKeepAlive)
	case req.Proto == "HTTP/1.0":
		ctx.SetType(CTClose)
	default:
		ctx.SetType(CTKeepAlive)
	}
}

// methodForbidsBody reports whether method never carries a request body
// under RFC 7230. chooseDecoder gives such a request an already-finished
// decoder when no framing header is present; other methods without a
// framing header get a zero-length decoder, so their body is empty too.
func methodForbidsBody(method string) bool {
	switch strings.ToUpper(method) {
	case "GET", "HEAD", "DELETE", "OPTIONS", "TRACE":
		return true
	default:
		return false
	}
}

// chooseDecoder picks the body decoder from method/headers, per spec.md
// §4.3: chunked beats Content-Length beats the method-forbids-body /
// length-0 defaults.
func chooseDecoder(req *Request, h interface{ Get(string) string }) (transfer.Decoder, error) {
	if te := h.Get("transfer-encoding"); strings.Contains(strings.ToLower(te), "chunked") {
		return transfer.NewChunkedDecoder(), nil
	}
	if cl := h.Get("content-length"); cl != "" {
		n, err := strconv.ParseUint(cl, 10, 64)
		if err != nil {
			return nil, ErrBadRequest
		}
		return transfer.NewLengthDecoder(n), nil
	}
	if methodForbidsBody(req.Method) {
		return transfer.NewEOFDecoder(), nil
	}
	return transfer.NewLengthDecoder(0), nil
}

// attachBody wires a request-body channel's reader half into req, and
// returns the channel so the dispatcher's request handler can pump bytes
// into it as it decodes from the read buffer.
func attachBody(req *Request) *reqbody.Channel {
	ch := reqbody.New()
	req.Body = &bodyReaderAdapter{r: ch.Reader()}
	return ch
}

// bodyReaderAdapter adapts *reqbody.Reader (data, err, done) to the
// BodyReader contract, translating the channel's own EOF sentinel into a
// plain nil error so callers see the ordinary io-style (data, nil, true)
// on clean end-of-body.
type bodyReaderAdapter struct {
	r *reqbody.Reader
}

func (b *bodyReaderAdapter) Recv() ([]byte, error, bool) {
	data, err, done := b.r.Recv()
	if err != nil && reqbody.IsEOF(err) {
		err = nil
	}
	return data, err, done
}

func (b *bodyReaderAdapter) Close() { b.r.Close() }
