package log

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type contextKey struct{}

// SetContextLogger stores lg in ctx. When ctx carries a valid span the logger
// is wrapped so that every entry is also recorded as a span event.
// A nil lg stores a NoopLogger.
func SetContextLogger(ctx context.Context, lg Logger) context.Context {
	if lg == nil {
		lg = NewNoopLogger()
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		lg = NewSpanLogger(lg, NewOtelSpanEventRecorder(span))
	}
	return context.WithValue(ctx, contextKey{}, lg)
}

// FromContext returns the logger stored in ctx, or a NoopLogger.
func FromContext(ctx context.Context) Logger {
	if lg, ok := ctx.Value(contextKey{}).(Logger); ok {
		return lg
	}
	return NewNoopLogger()
}
