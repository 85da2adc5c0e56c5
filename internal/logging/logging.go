// Package logging configures the structured JSON logger shared by the
// gateway and the audit recorder.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates a logger with the given level and format ("json" or "text").
func New(level slog.Level, format string) *slog.Logger {
	return slog.New(newHandler(os.Stdout, level, format))
}

func newHandler(w io.Writer, level slog.Level, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		// Source locations are a debugging aid, not production output.
		AddSource: level <= slog.LevelDebug,
	}

	switch format {
	case "text":
		return slog.NewTextHandler(w, opts)
	default:
		return slog.NewJSONHandler(w, opts)
	}
}

// ParseLevel converts a config string to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
