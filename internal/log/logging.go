// Package log builds the slog.Logger used by the command-line tools.
//
// Records go to stderr so stdout stays free for the report. With a log file
// set, records are written to both.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jangala-dev/uartasync/uartx"
)

// LevelTrace is below Debug; it enables the per-byte records of the uartx
// engines.
const LevelTrace = uartx.LevelTrace

// ParseLevel maps a --log-level name to a slog level. Unknown names give Info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MultiHandler fans out records to multiple handlers.
type MultiHandler struct{ hs []slog.Handler }

// Enabled reports whether any handler accepts level.
func (m MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes a clone of r to every handler that accepts its level.
func (m MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.hs {
		if h.Enabled(ctx, r.Level) {
			_ = h.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (m MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithAttrs(attrs)
	}
	return MultiHandler{hs: out}
}

func (m MultiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithGroup(name)
	}
	return MultiHandler{hs: out}
}

// Config selects level, encoding and an optional file sink.
type Config struct {
	Level  string `help:"Log level (trace, debug, info, warn, error)." default:"info" enum:"trace,debug,info,warn,error" env:"UARTX_LOG_LEVEL"`
	Format string `help:"Log encoding (text, json)." default:"text" enum:"text,json" env:"UARTX_LOG_FORMAT"`
	File   string `help:"Also write logs to this file." type:"path" env:"UARTX_LOG_FILE"`
}

// New builds a logger writing to w and, if cfg.File is set, to that file.
// The returned closers must be closed on exit.
func New(cfg Config, w io.Writer) (*slog.Logger, []io.Closer, error) {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	mk := func(w io.Writer) slog.Handler {
		if cfg.Format == "json" {
			return slog.NewJSONHandler(w, opts)
		}
		return slog.NewTextHandler(w, opts)
	}

	handlers := []slog.Handler{mk(w)}
	var closers []io.Closer
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		closers = append(closers, f)
		handlers = append(handlers, mk(f))
	}
	if len(handlers) == 1 {
		return slog.New(handlers[0]), closers, nil
	}
	return slog.New(MultiHandler{hs: handlers}), closers, nil
}
