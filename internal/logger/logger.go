// File: internal/logger/logger.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package logger hands out named zap loggers per subsystem with levels that
// can be changed at runtime.

package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu      sync.Mutex
	loggers = make(map[string]*zap.Logger)
	levels  = make(map[string]zap.AtomicLevel)
)

// Logger returns the logger for subsystem, creating it on first use.
func Logger(subsystem string) *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[subsystem]; ok {
		return l
	}
	cfg := ConfigFromEnv()
	level := zap.NewAtomicLevelAt(cfg.LevelFor(subsystem))
	l := zap.New(newCore(cfg.Format, level), zap.AddCaller()).Named(subsystem)
	loggers[subsystem] = l
	levels[subsystem] = level
	return l
}

// SetLevel changes the level of an existing subsystem logger.
func SetLevel(subsystem string, l zapcore.Level) {
	mu.Lock()
	defer mu.Unlock()
	if lv, ok := levels[subsystem]; ok {
		lv.SetLevel(l)
	}
}

// Or returns l when non-nil, otherwise the subsystem logger.
func Or(l *zap.Logger, subsystem string) *zap.Logger {
	if l != nil {
		return l
	}
	return Logger(subsystem)
}

func newCore(format Format, level zap.AtomicLevel) zapcore.Core {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if format == FormatJSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	return zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
}
