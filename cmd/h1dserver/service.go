/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package main

import (
	"strconv"
	"strings"

	"github.com/netpulse/h1d"
	"github.com/netpulse/h1d/hdr"
)

// acceptAllExpect accepts every Expect: 100-continue request unconditionally,
// an ExpectService for the simplest possible demo deployment.
func acceptAllExpect(req *h1d.Request) (*h1d.Request, error) { return req, nil }

// echoService is the demo Service: GET /healthz answers without touching
// the request body, everything else drains the body and echoes it back
// verbatim with a couple of diagnostic headers.
func echoService(req *h1d.Request) (*h1d.Response, error) {
	if strings.EqualFold(req.Method, "GET") && req.Target == "/healthz" {
		h := hdr.New()
		h.Set("content-type", "text/plain; charset=utf-8")
		return &h1d.Response{
			Status: 200,
			Header: h,
			Size:   h1d.BodySized,
			Body:   h1d.NewStaticBody([]byte("ok")),
		}, nil
	}

	var body []byte
	for {
		data, err, done := req.Body.Recv()
		body = append(body, data...)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}

	h := hdr.New()
	h.Set("content-type", "application/octet-stream")
	h.Set("x-echo-method", req.Method)
	h.Set("x-echo-target", req.Target)
	h.Set("x-echo-body-bytes", strconv.Itoa(len(body)))

	return &h1d.Response{
		Status: 200,
		Header: h,
		Size:   h1d.BodySized,
		Body:   h1d.NewStaticBody(body),
	}, nil
}
