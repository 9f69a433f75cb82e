package log_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/geotrust-match/matchnode/pkg/log"
	"github.com/geotrust-match/matchnode/pkg/log/logtest"
)

type recordedEvent struct {
	name  string
	kv    []any
	error bool
}

type fakeRecorder struct {
	events []recordedEvent
}

func (f *fakeRecorder) TraceID() string { return "trace-1" }
func (f *fakeRecorder) SpanID() string  { return "span-1" }

func (f *fakeRecorder) RecordEvent(name string, kv ...any) {
	f.events = append(f.events, recordedEvent{name: name, kv: kv})
}

func (f *fakeRecorder) RecordError(name string, kv ...any) {
	f.events = append(f.events, recordedEvent{name: name, kv: kv, error: true})
}

func TestSpanLogger(t *testing.T) {
	inner := logtest.NewRecorder()
	rec := &fakeRecorder{}
	logger := log.NewSpanLogger(inner, rec).WithName("discovery").WithKV("generation", 3)

	logger.Info("poll finished", "sessions", 2)
	logger.Error("query failed", "sessionId", 7)

	entries := inner.Entries()
	require.Len(t, entries, 2)

	traceID, ok := entries[0].Value("traceId")
	require.True(t, ok)
	assert.Equal(t, "trace-1", traceID)
	sessions, _ := entries[0].Value("sessions")
	assert.Equal(t, 2, sessions)
	assert.Equal(t, "discovery", entries[0].Logger)

	require.Len(t, rec.events, 2)
	assert.False(t, rec.events[0].error)
	assert.True(t, rec.events[1].error)
	assert.Equal(t, []any{"level", "info", "component", "discovery", "generation", 3, "sessions", 2}, rec.events[0].kv)
}

func TestContextLogger(t *testing.T) {
	t.Run("missing logger yields noop", func(t *testing.T) {
		assert.IsType(t, log.NoopLogger{}, log.FromContext(context.Background()))
	})

	t.Run("nil logger stores noop", func(t *testing.T) {
		ctx := log.SetContextLogger(context.Background(), nil)
		assert.IsType(t, log.NoopLogger{}, log.FromContext(ctx))
	})

	t.Run("no span keeps logger as is", func(t *testing.T) {
		rec := logtest.NewRecorder()
		ctx := log.SetContextLogger(context.Background(), rec)
		assert.Same(t, rec, log.FromContext(ctx))
	})

	t.Run("valid span wraps logger", func(t *testing.T) {
		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{1},
			SpanID:  trace.SpanID{2},
		})
		ctx := trace.ContextWithSpanContext(context.Background(), sc)
		ctx = log.SetContextLogger(ctx, logtest.NewRecorder())
		assert.IsType(t, log.SpanLogger{}, log.FromContext(ctx))
	})
}

func TestOtelSpanEventRecorderIDs(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0xaa},
		SpanID:  trace.SpanID{0xbb},
	})
	span := trace.SpanFromContext(trace.ContextWithSpanContext(context.Background(), sc))
	rec := log.NewOtelSpanEventRecorder(span)

	assert.Equal(t, sc.TraceID().String(), rec.TraceID())
	assert.Equal(t, sc.SpanID().String(), rec.SpanID())

	// Non-recording spans accept events without effect.
	rec.RecordEvent("ok", "k", "v")
	rec.RecordError("failed", "err", errors.New("boom"))
}
