package logger

import (
	"context"
	"errors"
	"log/slog"
)

// ContextExtractor derives an attribute from the context of a log call,
// such as the request ID. ok=false adds nothing.
type ContextExtractor func(ctx context.Context) (attr slog.Attr, ok bool)

// handler fans records out to one or more sinks after adding the attributes
// its extractors find in the call's context. Extractors run on every call,
// since the values they read change per request.
type handler struct {
	sinks      []slog.Handler
	extractors []ContextExtractor
}

func newHandler(sinks []slog.Handler, extractors ...ContextExtractor) *handler {
	h := &handler{sinks: sinks}
	for _, ex := range extractors {
		if ex != nil {
			h.extractors = append(h.extractors, ex)
		}
	}
	return h
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range h.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes to every sink that accepts the level. A failing sink does
// not keep the record from the others.
func (h *handler) Handle(ctx context.Context, rec slog.Record) error {
	for _, ex := range h.extractors {
		if attr, ok := ex(ctx); ok {
			rec.AddAttrs(attr)
		}
	}

	var errs []error
	for _, s := range h.sinks {
		if !s.Enabled(ctx, rec.Level) {
			continue
		}
		if err := s.Handle(ctx, rec.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (h *handler) WithGroup(name string) slog.Handler {
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (h *handler) derive(fn func(slog.Handler) slog.Handler) *handler {
	sinks := make([]slog.Handler, len(h.sinks))
	for i, s := range h.sinks {
		sinks[i] = fn(s)
	}
	return &handler{sinks: sinks, extractors: h.extractors}
}
