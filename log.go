/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package h1d

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions configures the package default logger, matching the shape of
// packetd/packetd's logger.Options. Development selects the console
// encoder (JSON otherwise); independently, a non-empty Filename sends
// output to a lumberjack-rotated file instead of stdout.
type LogOptions struct {
	Development bool
	Level       zapcore.Level
	Filename    string // empty means stdout
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
}

var (
	defaultLogMu  sync.Mutex
	defaultLogVal *zap.Logger
)

// SetLogOptions rebuilds the package default logger from opt. Call before
// Server.Serve; safe to call again to rotate configuration.
func SetLogOptions(opt LogOptions) {
	defaultLogMu.Lock()
	defer defaultLogMu.Unlock()
	defaultLogVal = buildLogger(opt)
}

func defaultLogger() *zap.Logger {
	defaultLogMu.Lock()
	defer defaultLogMu.Unlock()
	if defaultLogVal == nil {
		defaultLogVal = buildLogger(LogOptions{Development: true, Level: zapcore.InfoLevel})
	}
	return defaultLogVal
}

func buildLogger(opt LogOptions) *zap.Logger {
	var encoder zapcore.Encoder
	if opt.Development {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	var sink zapcore.WriteSyncer
	if opt.Filename == "" {
		sink = zapcore.AddSync(os.Stdout)
	} else {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opt.Filename,
			MaxSize:    opt.MaxSizeMB,
			MaxBackups: opt.MaxBackups,
			MaxAge:     opt.MaxAgeDays,
			LocalTime:  true,
		})
	}

	core := zapcore.NewCore(encoder, sink, opt.Level)
	return zap.New(core, zap.AddCaller())
}
