package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides leveled logging throughout the application.
// Messages keep the "[component] text" convention; structured fields are
// attached with With.
type Logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a Logger for the given mode. "production" emits JSON at
// info level; anything else uses the development encoder at debug level.
func NewLogger(mode string) *Logger {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	}

	z, err := cfg.Build()
	if err != nil {
		z = zap.NewExample()
	}
	return &Logger{sugar: z.Sugar()}
}

// NewNopLogger returns a Logger that discards everything. Used in tests.
func NewNopLogger() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// DebugEnabled reports whether Debug messages are written.
func (l *Logger) DebugEnabled() bool {
	return l.sugar.Desugar().Core().Enabled(zapcore.DebugLevel)
}

func (l *Logger) Info(format string, args ...any) {
	l.sugar.Info(sprintf(format, args))
}

func (l *Logger) Warn(format string, args ...any) {
	l.sugar.Warn(sprintf(format, args))
}

func (l *Logger) Error(format string, args ...any) {
	l.sugar.Error(sprintf(format, args))
}

func (l *Logger) Debug(format string, args ...any) {
	l.sugar.Debug(sprintf(format, args))
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...)}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

func sprintf(format string, args []any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
