package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestAttributesFromKV(t *testing.T) {
	tests := []struct {
		name string
		kv   []any
		want []attribute.KeyValue
	}{
		{
			name: "typed values",
			kv:   []any{"ok", true, "n", 3, "seq", uint32(7), "fee", 1.5, "err", errors.New("boom")},
			want: []attribute.KeyValue{
				attribute.Bool("ok", true),
				attribute.Int("n", 3),
				attribute.Int64("seq", 7),
				attribute.Float64("fee", 1.5),
				attribute.String("err", "boom"),
			},
		},
		{
			name: "dangling key",
			kv:   []any{"hash"},
			want: []attribute.KeyValue{attribute.String("hash", missingValue)},
		},
		{
			name: "non-string key",
			kv:   []any{"a", "b", 5, "x"},
			want: []attribute.KeyValue{attribute.String("a", "b"), attribute.String(malformedKeys, "[5 x]")},
		},
		{
			name: "large uint64 kept as text",
			kv:   []any{"big", uint64(18446744073709551615)},
			want: []attribute.KeyValue{attribute.String("big", "18446744073709551615")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, attributesFromKV(tt.kv...))
		})
	}
}
