package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func seq(lo, hi uint32) []uint32 {
	var out []uint32
	for id := lo; id <= hi; id++ {
		out = append(out, id)
	}
	return out
}

func TestCandidates(t *testing.T) {
	cfg := DefaultConfig

	tests := []struct {
		name  string
		known []uint32
		hwm   uint32
		want  []uint32
	}{
		{
			name: "nothing seen yet",
			want: seq(1, 100),
		},
		{
			name:  "forward window and recheck",
			known: []uint32{3, 40},
			hwm:   40,
			want:  append(append(seq(1, 10), 40), seq(41, 60)...),
		},
		{
			name: "forward window capped at ceiling",
			hwm:  190,
			want: append(seq(1, 10), seq(190, 200)...),
		},
		{
			name:  "known ids past the ceiling are kept",
			known: []uint32{250},
			hwm:   250,
			want:  append(seq(1, 10), 250),
		},
		{
			name: "window overlapping recheck is deduplicated",
			hwm:  5,
			want: seq(1, 25),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			known := map[uint32]struct{}{}
			for _, id := range tt.known {
				known[id] = struct{}{}
			}
			assert.Equal(t, tt.want, candidates(known, tt.hwm, cfg))
		})
	}
}
