// Package logging wraps zap with the five independently toggleable log
// levels of _examples/original_source/Client/Logger.py (debug, info,
// success, warning, error) — a wider taxonomy than zap's own severity
// ladder, so gating happens in this package rather than through zap's
// level enabler.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Levels toggles which of the five categories are emitted. A false field
// disables its category, so the zero value emits nothing; DefaultLevels
// enables all five.
type Levels struct {
	Debug   bool
	Info    bool
	Success bool
	Warning bool
	Error   bool
}

// DefaultLevels returns every category enabled.
func DefaultLevels() Levels {
	return Levels{Debug: true, Info: true, Success: true, Warning: true, Error: true}
}

// Logger is a structured logger gated by Levels, optionally mirroring
// output to a rotated log file.
type Logger struct {
	core   *zap.Logger
	levels Levels
}

// New builds a Logger writing to stderr and, if filePath is non-empty,
// to a rotated log file managed by lumberjack — the same combination
// the teacher's indirect zap/lumberjack dependency pair implies and the
// pattern _examples/yungbote-neurobridge-backend/internal/pkg/logger
// uses for its console+file tee.
func New(levels Levels, filePath string) (*Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(os.Stderr)),
		zapcore.DebugLevel,
	)
	cores := []zapcore.Core{consoleCore}

	if filePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.AddSync(rotator),
			zapcore.DebugLevel,
		)
		cores = append(cores, fileCore)
	}

	core := zap.New(zapcore.NewTee(cores...))
	return &Logger{core: core, levels: levels}, nil
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() {
	_ = l.core.Sync()
}

func (l *Logger) Debug(msg string, fields ...zap.Field) {
	if l.levels.Debug {
		l.core.Debug(msg, fields...)
	}
}

func (l *Logger) Info(msg string, fields ...zap.Field) {
	if l.levels.Info {
		l.core.Info(msg, fields...)
	}
}

// Success logs at info severity tagged with category=success, matching
// the original's distinct SUCCESS category (spec.md carries no direct
// counterpart, but the ambient logging stack does).
func (l *Logger) Success(msg string, fields ...zap.Field) {
	if l.levels.Success {
		l.core.Info(msg, append(fields, zap.String("category", "success"))...)
	}
}

func (l *Logger) Warning(msg string, fields ...zap.Field) {
	if l.levels.Warning {
		l.core.Warn(msg, fields...)
	}
}

func (l *Logger) Error(msg string, fields ...zap.Field) {
	if l.levels.Error {
		l.core.Error(msg, fields...)
	}
}

// With returns a Logger that annotates every entry with the given
// fields, sharing the same level gates.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{core: l.core.With(fields...), levels: l.levels}
}
