// Package logging configures the shared structured logger used by
// both binaries (domain-registry and agent).
package logging

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// New builds a tint-backed slog.Logger at the given level and installs
// it as the process default, mirroring the console-logger setup every
// binary in this repo shares.
func New(level slog.Level) *slog.Logger {
	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
	}))
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a CLI-facing level name to a slog.Level, falling
// back to Info for anything unrecognized.
func ParseLevel(name string) slog.Level {
	switch name {
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
