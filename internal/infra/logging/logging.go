package logging

import (
	"io"
	"log/slog"
	"os"
)

// New builds the process logger writing to stdout and installs it as the slog default.
func New(logFormat, logLevel string) *slog.Logger {
	logger := NewWithWriter(os.Stdout, logFormat, logLevel)

	slog.SetDefault(logger)

	return logger
}

// NewWithWriter builds a json (default) or text logger writing to w.
// Debug level also records the source position of each entry.
func NewWithWriter(w io.Writer, logFormat, logLevel string) *slog.Logger {
	level := ParseLevel(logLevel)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler

	switch logFormat {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("service", "gracehook")
}

// ParseLevel maps debug/info/warn/error to a slog level; anything else is info.
func ParseLevel(logLevel string) slog.Level {
	switch logLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
