package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	logFormatText = "text"
	logFormatJSON = "json"
)

type logConfig struct {
	Level  string
	Format string
}

func parseLogLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

// newLogger builds the process logger. A nil w writes to stdout.
func newLogger(cfg logConfig, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stdout
	}
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case logFormatText, "":
		handler = slog.NewTextHandler(w, opts)
	case logFormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	return slog.New(handler), nil
}
