package library

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger creates a text logger on w at the named level. Unknown levels fall
// back to warn so command output stays quiet.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := slog.LevelWarn

	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
