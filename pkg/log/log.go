// Package log provides slog-based logging setup for FlowSync components.
package log

import (
	"log/slog"
	"os"
)

func Setup(logLevel string) {
	SetupWithHandler(logLevel, nil)
}

// SetupWithHandler installs the default logger, optionally wrapping the text
// handler with extra handlers (e.g. the observability ring buffer).
func SetupWithHandler(logLevel string, wrap func(slog.Handler) slog.Handler) {
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

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	if wrap != nil {
		handler = wrap(handler)
	}

	slog.SetDefault(slog.New(handler))
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
