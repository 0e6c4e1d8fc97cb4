package logger

import (
	"context"
	"log/slog"
	"time"
)

// Sink stores error records somewhere durable. Implementations must not log
// through the handler that feeds them.
type Sink interface {
	Persist(ctx context.Context, rec Record)
}

// Record is the flattened form of a slog record handed to a Sink.
type Record struct {
	Time    time.Time
	Level   string
	Message string
	Attrs   map[string]any
}

type persistingHandler struct {
	inner slog.Handler
	sink  Sink
	attrs []slog.Attr
	group string
}

// NewPersistingHandler forwards records at error level or above to sink in
// addition to inner. Persistence is best effort.
func NewPersistingHandler(inner slog.Handler, sink Sink) slog.Handler {
	return &persistingHandler{inner: inner, sink: sink}
}

func (h *persistingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *persistingHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.inner.Handle(ctx, r)
	if r.Level >= slog.LevelError && h.sink != nil {
		h.persist(ctx, r)
	}
	return err
}

func (h *persistingHandler) persist(ctx context.Context, r slog.Record) {
	defer func() {
		// a broken sink must never take the caller down
		_ = recover()
	}()

	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		v := a.Value.Any()
		if e, ok := v.(error); ok {
			v = e.Error()
		}
		attrs[h.key(a.Key)] = v
		return true
	})

	h.sink.Persist(context.WithoutCancel(ctx), Record{
		Time:    r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
		Attrs:   attrs,
	})
}

func (h *persistingHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

func (h *persistingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.inner = h.inner.WithAttrs(attrs)
	cp.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		cp.attrs = append(cp.attrs, slog.Attr{Key: h.key(a.Key), Value: a.Value})
	}
	return &cp
}

func (h *persistingHandler) WithGroup(name string) slog.Handler {
	cp := *h
	cp.inner = h.inner.WithGroup(name)
	if cp.group == "" {
		cp.group = name
	} else {
		cp.group = cp.group + "." + name
	}
	return &cp
}
