// Package logger wraps zerolog behind the printf-style facade used across the pipeline.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel parses a string level to Level
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Config for logger
type Config struct {
	Level   Level
	Output  io.Writer
	Service string
	Console bool // human readable output for local runs
}

// Logger is a structured logger carrying a fixed set of fields.
type Logger struct {
	zl zerolog.Logger
}

var (
	defaultLogger *Logger
	once          sync.Once
)

func build(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	if cfg.Service == "" {
		cfg.Service = "nightcrawler"
	}
	return zerolog.New(out).
		Level(cfg.Level.zerolog()).
		With().
		Timestamp().
		Str("service", cfg.Service).
		Logger()
}

// Init initializes the default logger
func Init(cfg Config) {
	once.Do(func() {
		defaultLogger = &Logger{zl: build(cfg)}
	})
}

// Default returns the default logger
func Default() *Logger {
	if defaultLogger == nil {
		Init(Config{Level: LevelInfo, Output: os.Stdout})
	}
	return defaultLogger
}

// New creates a new logger instance
func New(cfg Config) *Logger {
	return &Logger{zl: build(cfg)}
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Zerolog exposes the underlying zerolog logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// Component returns a zerolog logger tagged with the component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zl.With().Str("component", name).Logger()
}

// WithField returns a new logger with an additional field
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithFields returns a new logger with additional fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

// WithContext extracts request_id from context
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok && reqID != "" {
		return l.WithField("request_id", reqID)
	}
	return l
}

// WithError adds error information
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}

// WithDuration adds duration in milliseconds
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return l.WithField("duration_ms", float64(d.Microseconds())/1000.0)
}

// Log methods
func (l *Logger) Debug(msg string, args ...any) { l.zl.Debug().Msgf(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.zl.Info().Msgf(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.zl.Warn().Msgf(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.zl.Error().Caller(1).Msgf(msg, args...) }
func (l *Logger) Fatal(msg string, args ...any) { l.zl.Fatal().Caller(1).Msgf(msg, args...) }

type ctxKey string

// RequestIDKey is the context key carrying the request id.
const RequestIDKey ctxKey = "request_id"

// Package-level functions using default logger
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
func Fatal(msg string, args ...any) { Default().Fatal(msg, args...) }

func WithField(key string, value any) *Logger  { return Default().WithField(key, value) }
func WithFields(fields map[string]any) *Logger { return Default().WithFields(fields) }
func WithContext(ctx context.Context) *Logger  { return Default().WithContext(ctx) }
func WithError(err error) *Logger              { return Default().WithError(err) }
func WithDuration(d time.Duration) *Logger     { return Default().WithDuration(d) }
func Component(name string) zerolog.Logger     { return Default().Component(name) }
