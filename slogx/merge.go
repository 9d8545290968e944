package slogx

import (
	"context"
	"errors"
	"log/slog"
)

var _ slog.Handler = (*handlerJoiner)(nil)

type handlerJoiner struct {
	a, b slog.Handler
}

func (h *handlerJoiner) Enabled(ctx context.Context, level slog.Level) bool {
	return h.a.Enabled(ctx, level) || h.b.Enabled(ctx, level)
}

// Handle only passes the record to handlers that are enabled for its level.
func (h *handlerJoiner) Handle(ctx context.Context, record slog.Record) error {
	var aerr, berr error
	if h.a.Enabled(ctx, record.Level) {
		aerr = h.a.Handle(ctx, record.Clone())
	}
	if h.b.Enabled(ctx, record.Level) {
		berr = h.b.Handle(ctx, record.Clone())
	}
	return errors.Join(aerr, berr)
}

func (h *handlerJoiner) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &handlerJoiner{
		a: h.a.WithAttrs(attrs),
		b: h.b.WithAttrs(attrs),
	}
}

func (h *handlerJoiner) WithGroup(name string) slog.Handler {
	return &handlerJoiner{
		a: h.a.WithGroup(name),
		b: h.b.WithGroup(name),
	}
}

// MergeHandlers will merge many [slog.Handler] into one for a single interface for both.
// Nil handlers are skipped, and nil is returned if all of them are nil.
func MergeHandlers(a, b slog.Handler, others ...slog.Handler) slog.Handler {
	var handlers []slog.Handler
	for _, h := range append([]slog.Handler{a, b}, others...) {
		if h != nil {
			handlers = append(handlers, h)
		}
	}
	switch len(handlers) {
	case 0:
		return nil
	case 1:
		return handlers[0]
	}
	joined := slog.Handler(&handlerJoiner{handlers[0], handlers[1]})
	for _, h := range handlers[2:] {
		joined = &handlerJoiner{joined, h}
	}
	return joined
}
