// Package log wraps zap with the handful of helpers the rest of the
// emulator reaches for: category-tagged loggers and value formatters
// for addresses, hex words and traced function names.
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a *zap.Logger with an optional message category prefix,
// mirroring the category-tagged wrapper used elsewhere in the pack.
type Logger struct {
	z        *zap.Logger
	category string
}

// NewNop returns a Logger that discards everything, for tests.
func NewNop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// New wraps an existing zap logger.
func New(z *zap.Logger) *Logger {
	return &Logger{z: z}
}

// Init builds a Logger writing to sinkPath, or stderr when sinkPath is empty.
func Init(sinkPath string, debug bool) (*Logger, error) {
	var ws zapcore.WriteSyncer
	if sinkPath != "" {
		f, err := os.OpenFile(sinkPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("log: open sink %q: %w", sinkPath, err)
		}
		ws = zapcore.AddSync(f)
	} else {
		ws = zapcore.AddSync(os.Stderr)
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, level)
	return &Logger{z: zap.New(core)}, nil
}

// WithCategory returns a derived Logger that prefixes every message, e.g.
// "[ftrace]" or "[itrace]".
func (l *Logger) WithCategory(category string) *Logger {
	return &Logger{z: l.z, category: category}
}

func (l *Logger) prefix(msg string) string {
	if l.category == "" {
		return msg
	}
	return "[" + l.category + "] " + msg
}

func (l *Logger) Info(msg string, fields ...zap.Field)  { l.z.Info(l.prefix(msg), fields...) }
func (l *Logger) Debug(msg string, fields ...zap.Field) { l.z.Debug(l.prefix(msg), fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.z.Warn(l.prefix(msg), fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.z.Error(l.prefix(msg), fields...) }

func (l *Logger) Sync() error { return l.z.Sync() }

// Hex formats v as a 0x-prefixed hex field without zero padding, e.g.
// Hex("addr", 0x1000) gives addr="0x1000".
func Hex(key string, v uint32) zap.Field {
	return zap.String(key, fmt.Sprintf("0x%x", v))
}

// Addr is Hex under the conventional "addr" key.
func Addr(v uint32) zap.Field { return Hex("addr", v) }

// Fn names the function a trace event refers to.
func Fn(name string) zap.Field { return zap.String("fn", name) }
