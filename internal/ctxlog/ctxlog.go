// Package ctxlog carries a *slog.Logger through context.Context so that
// every component logs through the run-scoped logger rather than a global.
package ctxlog

import (
	"context"
	"log/slog"
)

// key is unexported so no other package can collide with our context key.
type key struct{}

var loggerKey = key{}

// WithLogger returns a child context carrying the given logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx. Every code path that reaches
// a component is expected to have installed one; a missing logger is a
// programmer error, so this panics rather than silently falling back.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	panic("ctxlog: logger missing from context")
}
