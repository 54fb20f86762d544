package common

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Loggable interface for types that support custom logging.
type Loggable interface {
	SetLogger(logger *slog.Logger)
	GetLogger() *slog.Logger
}

// LoggerMixin provides common logging functionality.
type LoggerMixin struct {
	Logger *slog.Logger
}

// NewLoggerMixin creates a new logger mixin with default logger.
func NewLoggerMixin() LoggerMixin {
	return LoggerMixin{
		Logger: slog.Default(),
	}
}

// SetLogger sets a custom logger.
func (l *LoggerMixin) SetLogger(logger *slog.Logger) {
	if logger != nil {
		l.Logger = logger
	}
}

// GetLogger returns the logger.
func (l *LoggerMixin) GetLogger() *slog.Logger {
	if l.Logger == nil {
		l.Logger = slog.Default()
	}
	return l.Logger
}

// WithLoggerBuilder provides a fluent interface for setting loggers.
type WithLoggerBuilder[T any] interface {
	WithLogger(logger *slog.Logger) T
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a text or json logger writing to w (stderr when nil).
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
