/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h1d

import (
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config enumerates the dispatcher's external configuration, per spec.md
// §6.
type Config struct {
	// HeadLimit bounds the request-head parser (HEADER_LIMIT).
	HeadLimit HeadLimit
	// ReadBufLimit, WriteBufLimit cap the two buffers (bytes).
	ReadBufLimit, WriteBufLimit int
	// KeepAliveTimeout is the idle deadline between requests on a
	// kept-alive connection.
	KeepAliveTimeout time.Duration
	// RequestHeadTimeout is the first-request parse deadline.
	RequestHeadTimeout time.Duration
	// TLSAcceptTimeout is used by the external TLS collaborator; carried
	// here only so a single Config can configure the whole accept path.
	TLSAcceptTimeout time.Duration
	// ForceFlatBuf disables vectored writes even when the connection
	// supports them (spec.md §9 "Write buffer dual mode").
	ForceFlatBuf bool
	// RequestsPerSecond, if non-zero, applies a per-connection token
	// bucket ahead of invoking Service — a domain-stack enrichment of
	// spec.md §6 (SPEC_FULL.md §3), not present in the distilled spec.
	RequestsPerSecond rate.Limit

	// Service is the application request handler (spec.md §6).
	Service Service
	// ExpectService preprocesses Expect: 100-continue requests. Nil
	// means every expect-continue request is accepted unconditionally.
	ExpectService ExpectService
	// ErrorToResponse maps a Service/ExpectService error to a response.
	// Nil uses defaultErrorToResponse.
	ErrorToResponse ErrorToResponse

	// Date is the shared cached formatted-date source. Nil disables the
	// Date header.
	Date *DateSource

	// Logger overrides the package default zap logger.
	Logger *zap.Logger
}

func (c *Config) withDefaults() *Config {
	cfg := *c
	if cfg.HeadLimit == (HeadLimit{}) {
		cfg.HeadLimit = DefaultHeadLimit
	}
	if cfg.ReadBufLimit == 0 {
		cfg.ReadBufLimit = 64 << 10
	}
	if cfg.WriteBufLimit == 0 {
		cfg.WriteBufLimit = 64 << 10
	}
	if cfg.KeepAliveTimeout == 0 {
		cfg.KeepAliveTimeout = 75 * time.Second
	}
	if cfg.RequestHeadTimeout == 0 {
		cfg.RequestHeadTimeout = 10 * time.Second
	}
	if cfg.ErrorToResponse == nil {
		cfg.ErrorToResponse = defaultErrorToResponse
	}
	if cfg.Logger == nil {
		cfg.Logger = defaultLogger()
	}
	return &cfg
}

// Server accepts connections and runs the dispatcher loop over each one,
// per the teacher's response_server.go / tcp_keep_alive_listener.go
// pattern: TCP-level keep-alive is orthogonal to HTTP keep-alive and is
// set on every accepted connection regardless of the HTTP connection
// type.
type Server struct {
	Config Config
}

// Serve accepts connections from ln until Accept returns an error (any
// error, temporary or not, ends the loop and is returned), dispatching
// each connection on its own goroutine (spec.md §5: "one cooperative
// task per connection" — here, one goroutine).
func (s *Server) Serve(ln net.Listener) error {
	cfg := s.Config.withDefaults()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			tc.SetKeepAlive(true)
			tc.SetKeepAlivePeriod(3 * time.Minute)
		}
		var limiter *rate.Limiter
		if cfg.RequestsPerSecond > 0 {
			limiter = rate.NewLimiter(cfg.RequestsPerSecond, int(cfg.RequestsPerSecond)+1)
		}
		go func() {
			defer conn.Close()
			dispatch(conn, cfg, limiter)
		}()
	}
}
