package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a typed key/value pair attached to a log entry.
type Field = zap.Field

// Logger is the small structured-logging surface used across the module.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

func String(key, val string) Field { return zap.String(key, val) }
func Float64(key string, val float64) Field { return zap.Float64(key, val) }
func Int(key string, val int) Field { return zap.Int(key, val) }
func Bool(key string, val bool) Field { return zap.Bool(key, val) }
func Strings(key string, val []string) Field { return zap.Strings(key, val) }
func Any(key string, val interface{}) Field { return zap.Any(key, val) }
func Err(err error) Field { return zap.Error(err) }

// zapLogger implements Logger on top of a *zap.Logger.
type zapLogger struct {
	z *zap.Logger
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field) { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field) { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.z.Error(msg, fields...) }

// NewZapLogger creates a production‑ready logger (JSON encoding). level is
// one of debug, info, warn, error; empty means info.
func NewZapLogger(level string) (Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &zapLogger{z: z}, nil
}

// Wrap adapts an existing *zap.Logger.
func Wrap(z *zap.Logger) Logger {
	if z == nil {
		z = zap.NewNop()
	}
	return &zapLogger{z: z}
}

// NewNop returns a logger that discards everything.
func NewNop() Logger { return &zapLogger{z: zap.NewNop()} }

// With returns a child logger that always carries fields. Loggers that are not
// zap-backed are returned unchanged.
func With(l Logger, fields ...Field) Logger {
	if zl, ok := l.(*zapLogger); ok {
		return &zapLogger{z: zl.z.With(fields...)}
	}
	return l
}
