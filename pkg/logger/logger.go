// Package logger builds the zap loggers used across brewcore.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New instantiates a production zap logger emitting JSON at the given level
// ("debug", "info", "warn", "error"). An empty level means info.
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// Must is a helper that panics when the logger cannot be created.
func Must(logger *zap.Logger, err error) *zap.Logger {
	if err != nil {
		panic(err)
	}
	return logger
}

// Named returns a child logger with the provided component name.
func Named(base *zap.Logger, component string) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return base.Named(component)
}

// KV adapts a zap logger to the key/value logging surface of the service
// layer: Debug, Info, Warn and Error taking a message and alternating
// key/value pairs.
type KV struct {
	sugar *zap.SugaredLogger
}

// NewKV wraps base. A nil base discards everything.
func NewKV(base *zap.Logger) KV {
	if base == nil {
		base = zap.NewNop()
	}
	return KV{sugar: base.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l KV) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l KV) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l KV) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l KV) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }
