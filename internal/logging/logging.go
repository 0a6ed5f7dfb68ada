// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the process logger. zap does the encoding; the
// rest of the code logs through the log/slog front end.
package logging

import (
	"io"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// Logger carries both faces of one zap core. Zap is handed to middleware
// that wants a *zap.Logger; Slog is handed to everything else.
type Logger struct {
	Zap  *zap.Logger
	Slog *slog.Logger
}

// Sync flushes buffered entries.
func (l Logger) Sync() error { return l.Zap.Sync() }

// New builds a JSON logger in production and a coloured console logger
// otherwise. verbose lowers the level to debug.
func New(production, verbose bool) (Logger, error) {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}

	z, err := cfg.Build()
	if err != nil {
		return Logger{}, err
	}
	return wrap(z), nil
}

// NewWriter builds a JSON logger writing to w at the given level. Used by
// tests that assert on log output.
func NewWriter(w io.Writer, level zapcore.Level) Logger {
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return wrap(zap.New(core))
}

// Nop discards everything.
func Nop() Logger { return wrap(zap.NewNop()) }

func wrap(z *zap.Logger) Logger {
	return Logger{Zap: z, Slog: slog.New(zapslog.NewHandler(z.Core()))}
}
