package logger

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// With stores a logger carrying fields in ctx. Fields accumulate across
// middleware, so a handler's logger holds trace_id, client_ip and user_id.
func With(ctx context.Context, fields ...any) context.Context {
	return context.WithValue(ctx, contextKey{}, From(ctx).With(fields...))
}

// From returns the request logger, or the process logger outside a request.
func From(ctx context.Context) *slog.Logger {
	if l, ok := Lookup(ctx); ok {
		return l
	}
	return LoggerWrapper()
}

func Lookup(ctx context.Context) (*slog.Logger, bool) {
	if ctx == nil {
		return nil, false
	}
	l, ok := ctx.Value(contextKey{}).(*slog.Logger)
	return l, ok
}
