// Package logging builds the JSON slog loggers used by itpsession. Every
// record carries the component that produced it.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// DefaultComponent tags records when Options.Component is blank.
const DefaultComponent = "itpsession"

type Options struct {
	Level     string
	Writer    io.Writer
	Component string
}

func NewLogger(opts Options) *slog.Logger {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}
	h := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: parseLevel(opts.Level)})
	component := strings.TrimSpace(opts.Component)
	if component == "" {
		component = DefaultComponent
	}
	return slog.New(h).With("component", component)
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
