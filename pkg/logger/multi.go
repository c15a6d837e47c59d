package logger

import (
	"context"
	"errors"
	"log/slog"
)

// Multi returns a logger that hands every record to the handlers of all the
// given loggers. The CLI pairs the stderr logger with a JSON --log-file
// logger this way; each handler still applies its own level.
//
// A failing handler does not stop the others. Their errors are joined.
func Multi(loggers ...*slog.Logger) *slog.Logger {
	fan := make(fanout, 0, len(loggers))
	for _, l := range loggers {
		fan = append(fan, l.Handler())
	}
	return slog.New(fan)
}

type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}
