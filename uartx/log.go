package uartx

import (
	"context"
	"log/slog"
)

// LevelTrace sits below slog.LevelDebug. The engines log every byte they move
// at this level.
const LevelTrace slog.Level = -8

// Component identifies the part of the driver a log record comes from.
type Component string

const (
	ComponentTx     Component = "tx"
	ComponentRx     Component = "rx"
	ComponentSerial Component = "serial"
)

type options struct {
	logger *slog.Logger
	stats  *Stats
}

// Option configures engines built by New, NewTxEngine and NewRxEngine.
type Option func(*options)

// WithLogger sets the logger. Records are tagged with a component attribute.
// Without it the engines log nothing.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStats makes the engine count into s instead of a private Stats.
func WithStats(s *Stats) Option {
	return func(o *options) { o.stats = s }
}

// collect applies opts and fills in the defaults.
func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.stats == nil {
		o.stats = new(Stats)
	}
	return o
}

func buildOptions(c Component, opts []Option) options {
	o := collect(opts)
	o.logger = o.logger.With("component", string(c))
	return o
}

// trace logs at LevelTrace, skipping the argument work when it is disabled.
func trace(l *slog.Logger, msg string, args ...any) {
	ctx := context.Background()
	if l.Enabled(ctx, LevelTrace) {
		l.Log(ctx, LevelTrace, msg, args...)
	}
}
