package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/relaypool/connpool/internal/pool"
)

// LogLevel represents the logging level
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// Logger wraps slog.Logger for structured logging. It is the sink both
// the benchmark CLI and the pool's admin HTTP surface write through;
// Pool itself never imports this package directly, only the pool.LogFn
// DefaultLogFn adapts it into.
type Logger struct {
	*slog.Logger
}

// Global logger instance
var globalLogger *Logger

// Init initializes the global logger
func Init(level LogLevel, format string) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(string(level)) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	globalLogger = &Logger{
		Logger: slog.New(handler),
	}
	slog.SetDefault(globalLogger.Logger)
}

// Get returns the global logger instance
func Get() *Logger {
	if globalLogger == nil {
		// Fallback to default text handler if not initialized
		handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
		globalLogger = &Logger{
			Logger: slog.New(handler),
		}
	}
	return globalLogger
}

// With returns a new logger with additional attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// requestIDKey is the context key adminhttp's request-ID middleware
// stores a request ID under. A distinct type avoids collisions with
// other packages that stash values under plain string keys.
type requestIDKey struct{}

// ContextWithRequestID attaches id to ctx so a later WithContext call
// picks it up. adminhttp's middleware is the only caller.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// WithContext returns a logger annotated with the request ID attached to
// ctx via ContextWithRequestID, if any, so a single admin HTTP call's log
// lines can be correlated.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return l.With("request_id", id)
	}
	return l
}

// DebugWith logs a debug message with attributes
func (l *Logger) DebugWith(msg string, args ...any) {
	l.Logger.Debug(msg, args...)
}

// InfoWith logs an info message with attributes
func (l *Logger) InfoWith(msg string, args ...any) {
	l.Logger.Info(msg, args...)
}

// WarnWith logs a warning message with attributes
func (l *Logger) WarnWith(msg string, args ...any) {
	l.Logger.Warn(msg, args...)
}

// ErrorWith logs an error message with attributes
func (l *Logger) ErrorWith(msg string, args ...any) {
	l.Logger.Error(msg, args...)
}

// ErrorWithErr logs an error message with an error object
func (l *Logger) ErrorWithErr(msg string, err error, args ...any) {
	args = append(args, slog.Any("error", err))
	l.Logger.Error(msg, args...)
}

// DefaultLogFn adapts l into the log sink pool.Options.LogFn expects, so
// a pool's lifecycle events (worker replenish, overflow, dead-slot
// retries) fold into the same structured logger as everything else.
// Not wired in automatically: the benchmark CLI passes this explicitly
// only when the admin HTTP surface (whose own LogFn fans events to
// /events subscribers instead) is disabled.
func DefaultLogFn(l *Logger) pool.LogFn {
	if l == nil {
		l = Get()
	}
	return func(message string, data map[string]any) {
		args := make([]any, 0, len(data)*2)
		for k, v := range data {
			args = append(args, k, v)
		}
		l.InfoWith(message, args...)
	}
}
