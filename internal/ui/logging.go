package ui

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the printf-style logger used across the CLI, engine and API.
type Logger struct {
	Debug bool
	z     *zap.Logger
	s     *zap.SugaredLogger
}

// LogOptions selects the level and encoding of a Logger.
type LogOptions struct {
	Level  string
	Format string // "console" or "json"
}

// NewLoggerWith builds a logger from explicit options.
func NewLoggerWith(opts LogOptions) (*Logger, error) {
	level := parseLevel(opts.Level)

	cfg := zap.NewProductionConfig()
	if strings.EqualFold(opts.Format, "console") || opts.Format == "" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return wrap(z, level == zapcore.DebugLevel), nil
}

// NopLogger discards everything.
func NopLogger() *Logger {
	return wrap(zap.NewNop(), false)
}

func wrap(z *zap.Logger, debug bool) *Logger {
	return &Logger{Debug: debug, z: z, s: z.Sugar()}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) Debugf(format string, args ...any) {
	if l == nil {
		return
	}
	l.s.Debugf(strings.TrimRight(format, "\n"), args...)
}

func (l *Logger) Infof(format string, args ...any) {
	if l == nil {
		return
	}
	l.s.Infof(strings.TrimRight(format, "\n"), args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	if l == nil {
		return
	}
	l.s.Warnf(strings.TrimRight(format, "\n"), args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	if l == nil {
		return
	}
	l.s.Errorf(strings.TrimRight(format, "\n"), args...)
}

// With returns a child logger carrying structured key/value pairs.
func (l *Logger) With(kv ...any) *Logger {
	if l == nil {
		return nil
	}
	s := l.s.With(kv...)
	return &Logger{Debug: l.Debug, z: s.Desugar(), s: s}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	if l == nil {
		return
	}
	_ = l.z.Sync()
}
