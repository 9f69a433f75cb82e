package log

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type loggerKey struct{}

// SetContextLogger stores lg in ctx. When ctx carries a valid span the logger
// is wrapped in a SpanLogger. A nil lg stores a NoopLogger.
func SetContextLogger(ctx context.Context, lg Logger) context.Context {
	if lg == nil {
		lg = NewNoopLogger()
	}
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		lg = NewSpanLogger(lg, NewOtelSpanEventRecorder(span))
	}
	return context.WithValue(ctx, loggerKey{}, lg)
}

// FromContext returns the logger stored by SetContextLogger, or a NoopLogger.
func FromContext(ctx context.Context) Logger {
	if lg, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return lg
	}
	return NewNoopLogger()
}
