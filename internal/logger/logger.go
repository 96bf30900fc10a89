package logger

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/hireready/backend/internal/errors"
)

// Level represents the log level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
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
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel maps a configured level name to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger provides structured logging on top of zerolog
type Logger struct {
	zl        zerolog.Logger
	component string
}

var defaultLogger = New(os.Stdout, LevelInfo, "")

// New creates a new JSON logger
func New(output io.Writer, level Level, component string) *Logger {
	zl := zerolog.New(output).Level(level.zerolog()).With().Timestamp().Logger()
	return &Logger{zl: zl, component: component}
}

// NewConsole creates a human-readable logger for local development.
func NewConsole(output io.Writer, level Level, component string) *Logger {
	return New(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}, level, component)
}

// SetDefault sets the default logger
func SetDefault(l *Logger) {
	defaultLogger = l
}

// Default returns the default logger
func Default() *Logger {
	return defaultLogger
}

// WithComponent creates a new logger with the specified component name
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{zl: l.zl, component: component}
}

func (l *Logger) event(ctx context.Context, level zerolog.Level, msg string, fields map[string]interface{}, err error) {
	ev := l.zl.WithLevel(level)
	if !ev.Enabled() {
		return
	}
	if l.component != "" {
		ev = ev.Str("component", l.component)
	}
	if ctx != nil {
		if requestID := apperrors.GetRequestID(ctx); requestID != "" {
			ev = ev.Str("request_id", requestID)
		}
	}
	if len(fields) > 0 {
		ev = ev.Fields(redact(fields))
	}
	if err != nil {
		ev = ev.Err(err)
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			ev = ev.Str("error_code", appErr.Code).Str("error_category", string(appErr.Category))
		}
	}
	ev.Msg(msg)
}

// Debug logs a debug message
func (l *Logger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.event(ctx, zerolog.DebugLevel, msg, first(fields), nil)
}

// Info logs an info message
func (l *Logger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.event(ctx, zerolog.InfoLevel, msg, first(fields), nil)
}

// Warn logs a warning message
func (l *Logger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.event(ctx, zerolog.WarnLevel, msg, first(fields), nil)
}

// Error logs an error message
func (l *Logger) Error(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	l.event(ctx, zerolog.ErrorLevel, msg, first(fields), err)
}

func first(fields []map[string]interface{}) map[string]interface{} {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

var sensitiveKeys = []string{"password", "token", "secret", "authorization", "hash"}

// redact replaces values of credential-looking keys.
func redact(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if isSensitive(k) {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Package-level convenience functions

func Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	defaultLogger.Debug(ctx, msg, fields...)
}

func Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	defaultLogger.Info(ctx, msg, fields...)
}

func Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	defaultLogger.Warn(ctx, msg, fields...)
}

func Error(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	defaultLogger.Error(ctx, msg, err, fields...)
}
