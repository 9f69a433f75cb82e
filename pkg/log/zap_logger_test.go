package log_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geotrust-match/matchnode/pkg/log"
)

type bufferSyncer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *bufferSyncer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *bufferSyncer) Sync() error { return nil }

func (b *bufferSyncer) lines(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestZapLogger(t *testing.T) {
	sink := &bufferSyncer{}
	logger := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelDebug, Output: "stdout"}, sink)

	logger = logger.WithName("invoker").WithName("lifecycle")
	assert.Equal(t, "invoker.lifecycle", logger.Name())

	logger = logger.WithKV("contract", "CABC")
	assert.Equal(t, []any{"contract", "CABC"}, logger.GetAllKV())

	logger.Debug("simulated", "function", "get_session")
	logger.Warn("confirmation timed out", "hash", "ab12")

	entries := sink.lines(t)
	require.Len(t, entries, 2)

	assert.Equal(t, "debug", entries[0]["level"])
	assert.Equal(t, "simulated", entries[0]["msg"])
	assert.Equal(t, "invoker.lifecycle", entries[0]["logger"])
	assert.Equal(t, "CABC", entries[0]["contract"])
	assert.Equal(t, "get_session", entries[0]["function"])
	assert.Contains(t, entries[0]["caller"], "log/zap_logger_test.go")

	assert.Equal(t, "warn", entries[1]["level"])
	assert.Equal(t, "ab12", entries[1]["hash"])
}

func TestZapLoggerLevelFilter(t *testing.T) {
	sink := &bufferSyncer{}
	logger := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelWarn, Output: "stdout"}, sink)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Error("kept")

	entries := sink.lines(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["msg"])
}

func TestZapLoggerWithKVDoesNotLeak(t *testing.T) {
	base := log.NewZapLogger(log.Config{Format: "json", Level: log.LevelDebug, Output: "stdout"})
	a := base.WithKV("a", 1)
	b := a.WithKV("b", 2)
	c := a.WithKV("c", 3)

	assert.Equal(t, []any{"a", 1, "b", 2}, b.GetAllKV())
	assert.Equal(t, []any{"a", 1, "c", 3}, c.GetAllKV())
	assert.Empty(t, base.GetAllKV())
}
