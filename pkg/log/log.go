// Package log configures structured logging for the certflow binaries.
package log

import (
	"log/slog"
	"os"
)

const serviceName = "certflow"

// Setup installs the process-wide text logger at the given level. Unknown
// level tokens fall back to info.
func Setup(logLevel string) {
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

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	slog.SetDefault(slog.New(handler).With(slog.String("service", serviceName)))
}

// WithModule returns a child of the default logger tagged with a certflow
// module name (api, certification, httpexec, ...).
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
