// Package log configures the process-wide structured logger.
package log

import (
	"log/slog"
	"os"
)

// Setup installs a text handler at the given level as the default
// logger and returns it.
func Setup(logLevel string) *slog.Logger {
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return logger
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
