package log

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	_ Logger            = SpanLogger{}
	_ SpanEventRecorder = OtelSpanEventRecorder{}
)

// SpanLogger forwards every entry to an inner logger and to a SpanEventRecorder.
// Entries on the inner logger carry traceId and spanId.
type SpanLogger struct {
	inner    Logger
	recorder SpanEventRecorder
}

func NewSpanLogger(inner Logger, recorder SpanEventRecorder) Logger {
	return SpanLogger{inner: inner.AddCallerSkip(1), recorder: recorder}
}

func (sl SpanLogger) Debug(msg string, keysAndValues ...any) {
	sl.recorder.RecordEvent(msg, sl.eventAttrs(LevelDebug, keysAndValues)...)
	sl.inner.Debug(msg, sl.traced(keysAndValues)...)
}

func (sl SpanLogger) Info(msg string, keysAndValues ...any) {
	sl.recorder.RecordEvent(msg, sl.eventAttrs(LevelInfo, keysAndValues)...)
	sl.inner.Info(msg, sl.traced(keysAndValues)...)
}

func (sl SpanLogger) Warn(msg string, keysAndValues ...any) {
	sl.recorder.RecordEvent(msg, sl.eventAttrs(LevelWarn, keysAndValues)...)
	sl.inner.Warn(msg, sl.traced(keysAndValues)...)
}

// Error also marks the span as failed.
func (sl SpanLogger) Error(msg string, keysAndValues ...any) {
	sl.recorder.RecordError(msg, sl.eventAttrs(LevelError, keysAndValues)...)
	sl.inner.Error(msg, sl.traced(keysAndValues)...)
}

func (sl SpanLogger) Fatal(msg string, keysAndValues ...any) {
	sl.recorder.RecordError(msg, sl.eventAttrs(LevelFatal, keysAndValues)...)
	sl.inner.Fatal(msg, sl.traced(keysAndValues)...)
}

func (sl SpanLogger) WithKV(key string, value any) Logger {
	return SpanLogger{inner: sl.inner.WithKV(key, value), recorder: sl.recorder}
}

func (sl SpanLogger) GetAllKV() []any {
	return sl.inner.GetAllKV()
}

func (sl SpanLogger) WithName(name string) Logger {
	return SpanLogger{inner: sl.inner.WithName(name), recorder: sl.recorder}
}

func (sl SpanLogger) Name() string {
	return sl.inner.Name()
}

func (sl SpanLogger) AddCallerSkip(skip int) Logger {
	return SpanLogger{inner: sl.inner.AddCallerSkip(skip), recorder: sl.recorder}
}

func (sl SpanLogger) traced(keysAndValues []any) []any {
	out := make([]any, 0, len(keysAndValues)+4)
	out = append(out, "traceId", sl.recorder.TraceID(), "spanId", sl.recorder.SpanID())
	return append(out, keysAndValues...)
}

// eventAttrs prefixes the entry with level, component and the logger's own pairs,
// since span events do not see the inner logger's context.
func (sl SpanLogger) eventAttrs(level Level, keysAndValues []any) []any {
	bound := sl.inner.GetAllKV()
	out := make([]any, 0, len(bound)+len(keysAndValues)+4)
	out = append(out, "level", string(level), "component", sl.inner.Name())
	out = append(out, bound...)
	return append(out, keysAndValues...)
}

// OtelSpanEventRecorder records log entries as OpenTelemetry span events.
type OtelSpanEventRecorder struct {
	span trace.Span
}

func NewOtelSpanEventRecorder(span trace.Span) OtelSpanEventRecorder {
	return OtelSpanEventRecorder{span: span}
}

func (r OtelSpanEventRecorder) TraceID() string {
	return r.span.SpanContext().TraceID().String()
}

func (r OtelSpanEventRecorder) SpanID() string {
	return r.span.SpanContext().SpanID().String()
}

func (r OtelSpanEventRecorder) RecordEvent(name string, keysAndValues ...any) {
	r.span.AddEvent(name, trace.WithAttributes(attributesFromKV(keysAndValues...)...))
}

func (r OtelSpanEventRecorder) RecordError(name string, keysAndValues ...any) {
	r.span.AddEvent(name, trace.WithAttributes(attributesFromKV(keysAndValues...)...))
	r.span.SetStatus(codes.Error, name)
}

const (
	missingValue  = "MISSING"
	malformedKeys = "malformedKeysAndValues"
)

// attributesFromKV converts alternating pairs to span attributes. A trailing key
// without a value gets missingValue. Conversion stops at the first non-string key
// and the remainder is kept as a single malformedKeys attribute.
func attributesFromKV(keysAndValues ...any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			attrs = append(attrs, attribute.String(malformedKeys, fmt.Sprint(keysAndValues[i:])))
			break
		}
		if i+1 >= len(keysAndValues) {
			attrs = append(attrs, attribute.String(key, missingValue))
			break
		}
		attrs = append(attrs, attributeOf(key, keysAndValues[i+1]))
	}
	return attrs
}

func attributeOf(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case bool:
		return attribute.Bool(key, v)
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int32:
		return attribute.Int64(key, int64(v))
	case int64:
		return attribute.Int64(key, v)
	case uint32:
		return attribute.Int64(key, int64(v))
	case uint64:
		// Values above MaxInt64 would wrap.
		return attribute.String(key, fmt.Sprint(v))
	case float64:
		return attribute.Float64(key, v)
	case error:
		return attribute.String(key, v.Error())
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
