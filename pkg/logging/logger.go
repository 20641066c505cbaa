// Package logging builds the structured slog logger shared by the commands.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects the level, output format and destination.
type Config struct {
	Level  string    // debug, info, warn, error
	JSON   bool      // JSON lines instead of key=value text
	Output io.Writer // defaults to os.Stderr
}

// ParseLevel maps a level name to its slog level. Names are case
// insensitive; "warning" is accepted for warn.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// New creates a logger from cfg. An unknown level falls back to info.
func New(cfg Config) *slog.Logger {
	level, err := ParseLevel(cfg.Level)
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	if err != nil {
		logger.Warn("falling back to info level", "error", err)
	}
	return logger
}
