/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/netpulse/h1d"
)

var (
	flagAddr           string
	flagKeepAlive      time.Duration
	flagHeadTimeout    time.Duration
	flagRatePerConn    float64
	flagMaxHeaderBytes int
	flagDevelopmentLog bool
	flagLogFile        string
)

var rootCmd = &cobra.Command{
	Use:   "h1dserver",
	Short: "Run the h1d HTTP/1.1 connection dispatcher behind a demo echo service",
	Example: "# h1dserver --addr :8080 --keep-alive 75s",
	RunE:    run,
}

func init() {
	rootCmd.Flags().StringVar(&flagAddr, "addr", envOr("H1DSERVER_ADDR", ":8080"), "listen address")
	rootCmd.Flags().DurationVar(&flagKeepAlive, "keep-alive", 75*time.Second, "idle timeout between requests on a kept-alive connection")
	rootCmd.Flags().DurationVar(&flagHeadTimeout, "head-timeout", 10*time.Second, "deadline to receive a request head")
	rootCmd.Flags().Float64Var(&flagRatePerConn, "rate", 0, "per-connection requests/sec limit; 0 disables")
	rootCmd.Flags().IntVar(&flagMaxHeaderBytes, "max-header-bytes", 1<<20, "maximum request head size in bytes")
	rootCmd.Flags().BoolVar(&flagDevelopmentLog, "dev-log", true, "use a human-readable console log encoder instead of JSON")
	rootCmd.Flags().StringVar(&flagLogFile, "log-file", "", "rotate logs to this file instead of stdout")
}

// envOr reads name from the environment, casting it to the same type as
// def, or returns def unset. Lets ops override flag defaults without a
// config file, matching the pack's spf13/cast-based env coercion idiom.
func envOr(name, def string) string {
	if v, ok := os.LookupEnv(name); ok {
		return cast.ToString(v)
	}
	return def
}

func run(cmd *cobra.Command, args []string) error {
	level := zapcore.InfoLevel
	h1d.SetLogOptions(h1d.LogOptions{
		Development: flagDevelopmentLog,
		Level:       level,
		Filename:    flagLogFile,
		MaxSizeMB:   100,
		MaxBackups:  3,
		MaxAgeDays:  28,
	})

	ln, err := net.Listen("tcp", flagAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", flagAddr, err)
	}

	date := h1d.NewDateSource()
	defer date.Stop()

	srv := &h1d.Server{
		Config: h1d.Config{
			HeadLimit:          h1d.HeadLimit{MaxHeaders: 100, MaxBytes: flagMaxHeaderBytes},
			KeepAliveTimeout:   flagKeepAlive,
			RequestHeadTimeout: flagHeadTimeout,
			RequestsPerSecond:  rate.Limit(flagRatePerConn),
			Service:            echoService,
			ExpectService:      acceptAllExpect,
			Date:               date,
		},
	}

	fmt.Fprintf(os.Stdout, "h1dserver listening on %s\n", flagAddr)
	return srv.Serve(ln)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
