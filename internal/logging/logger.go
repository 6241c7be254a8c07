package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a JSON structured logger on stdout and installs it as the default.
func New(level string) *slog.Logger {
	log := NewWithWriter(os.Stdout, level)
	slog.SetDefault(log)
	return log
}

// NewWithWriter creates a JSON structured logger writing to w.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
	})
	return slog.New(h)
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(level string) slog.Level {
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
