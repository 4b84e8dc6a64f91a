// Package logging configures the structured logger used throughout this
// module, mirroring the reference platform's pkg/logger: a single
// log/slog.Default() setup with text or JSON output, and a WithComponent
// helper for per-package child loggers.
package logging

import (
	"log/slog"
	"os"
)

// Setup installs a slog.Default() handler at the given level ("debug",
// "info", "warn", "error") in either "json" or text format. Loggers already
// returned by WithComponent keep the handler that was the default when they
// were created; this module's packages create theirs at package
// initialization, so Setup's level and format do not apply to them.
func Setup(level string, format string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithComponent returns a child of slog.Default() tagged with the given
// component name, e.g. "engine", "segment", "cachelog".
func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch level {
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
