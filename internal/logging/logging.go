// Package logging builds the process-wide slog logger from the environment.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup configures the default logger from LOG_LEVEL, LOG_FORMAT and
// LOG_SOURCE, writing to stderr so CLI output on stdout stays clean.
func Setup() *slog.Logger {
	logger := New(os.Stderr)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing to w with the environment's settings.
func New(w io.Writer) *slog.Logger {
	return slog.New(handler(w))
}

func handler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level(),
		AddSource: os.Getenv("LOG_SOURCE") == "true",
	}
	if format() == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func level() slog.Level {
	lv := os.Getenv("LOG_LEVEL")
	if lv == "" {
		if isProduction() {
			return slog.LevelInfo
		}
		return slog.LevelDebug
	}
	switch strings.ToUpper(lv) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func format() string {
	if f := os.Getenv("LOG_FORMAT"); f != "" {
		return strings.ToLower(f)
	}
	if isProduction() {
		return "json"
	}
	return "text"
}

func isProduction() bool {
	return strings.EqualFold(os.Getenv("API_ENV"), "production")
}
