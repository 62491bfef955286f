// Package logger wraps log/slog for the docvault server: JSON output in
// production for log shippers, human-readable text at debug level
// everywhere else, behind package-level helpers so call sites stay terse.
package logger

import (
	"log/slog"
	"os"
)

// Logger is the process-wide structured logger. Init replaces it; the
// helpers below fall back to a development logger when Init was never
// called (tests, ad-hoc tooling).
var Logger *slog.Logger

// Init configures the global logger for the given environment.
func Init(env string) {
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func get() *slog.Logger {
	if Logger == nil {
		Init("development")
	}
	return Logger
}

// With returns a child logger carrying the given key-value pairs.
func With(args ...any) *slog.Logger { return get().With(args...) }

func Info(msg string, args ...any)  { get().Info(msg, args...) }
func Debug(msg string, args ...any) { get().Debug(msg, args...) }
func Warn(msg string, args ...any)  { get().Warn(msg, args...) }
func Error(msg string, args ...any) { get().Error(msg, args...) }
