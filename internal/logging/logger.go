// Package logging builds the zap logger used across vivariumcore and adapts it to the
// key/value Logger interface the facility manager consumes.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the minimum level and encoder.
type Config struct {
	Level  string
	Format string
	// OutputPaths defaults to stderr.
	OutputPaths []string
}

// ParseLevel converts a level name to a zap level. Unknown names are an error.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// New builds a zap logger from cfg. JSON output uses the production encoder; console output
// uses the development encoder with colored levels.
func New(cfg Config) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var zcfg zap.Config
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		zcfg = zap.NewProductionConfig()
	case "console", "text":
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if len(cfg.OutputPaths) > 0 {
		zcfg.OutputPaths = cfg.OutputPaths
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.With(zap.String("service", "vivariumcore")), nil
}

// Logger wraps a sugared zap logger with Debug/Info/Warn/Error(msg, keysAndValues...).
type Logger struct {
	sugar *zap.SugaredLogger
}

// Wrap adapts a zap logger. A nil logger yields a no-op logger.
func Wrap(l *zap.Logger) *Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return &Logger{sugar: l.Sugar()}
}

// Named returns a child logger scoped to component.
func (l *Logger) Named(component string) *Logger {
	return &Logger{sugar: l.sugar.Named(component)}
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{sugar: l.sugar.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

// Zap returns the underlying structured logger for packages that take a *zap.Logger.
func (l *Logger) Zap() *zap.Logger { return l.sugar.Desugar() }

// Sync flushes buffered entries.
func (l *Logger) Sync() error { return l.sugar.Sync() }
