package typedvalue_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geotrust-match/matchnode/pkg/strkey"
	tv "github.com/geotrust-match/matchnode/pkg/typedvalue"
)

var (
	playerKey   = bytes.Repeat([]byte{0x11}, strkey.KeyLen)
	playerAddr  = strkey.MustEncode(strkey.ClassAccount, playerKey)
	contractKey = bytes.Repeat([]byte{0x22}, strkey.KeyLen)
	contractID  = strkey.MustEncode(strkey.ClassContract, contractKey)
)

func TestEncode(t *testing.T) {
	var nilPtr *uint32
	cell := uint32(42)

	tests := []struct {
		name string
		in   any
		want tv.Value
	}{
		{"typed value passes through", tv.Symbol("Waiting"), tv.Symbol("Waiting")},
		{"int", 12, tv.U32(12)},
		{"uint32", uint32(7), tv.U32(7)},
		{"integral float", float64(3), tv.U32(3)},
		{"bool", true, tv.Bool(true)},
		{"string", "hello", tv.String("hello")},
		{"account address", playerAddr, tv.Address{Class: strkey.ClassAccount, Key: playerKey}},
		{"contract address", contractID, tv.Address{Class: strkey.ClassContract, Key: contractKey}},
		{"address-shaped garbage falls back", "G" + string(bytes.Repeat([]byte{'A'}, 55)), tv.String("G" + string(bytes.Repeat([]byte{'A'}, 55)))},
		{"bytes", []byte{1, 2}, tv.Bytes{1, 2}},
		{"byte array", [3]byte{9, 8, 7}, tv.Bytes{9, 8, 7}},
		{"nil", nil, tv.Void{}},
		{"nil pointer", nilPtr, tv.Void{}},
		{"pointer", &cell, tv.U32(42)},
		{"slice", []uint32{1, 2}, tv.Vec{tv.U32(1), tv.U32(2)}},
		{"record", tv.Record{{Name: "b", Value: 1}, {Name: "a", Value: "x"}}, tv.Map{
			{Key: tv.Symbol("b"), Val: tv.U32(1)},
			{Key: tv.Symbol("a"), Val: tv.String("x")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tv.Encode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeErrors(t *testing.T) {
	for _, in := range []any{-1, int64(1) << 33, 1.5, struct{}{}, map[string]int{}} {
		_, err := tv.Encode(in)
		assert.Error(t, err, "%#v", in)
	}
}

func TestEncodeAddressFallbackIsReported(t *testing.T) {
	var reported []string
	enc := tv.NewEncoder(tv.WithAddressFallbackHook(func(s string, err error) {
		assert.Error(t, err)
		reported = append(reported, s)
	}))

	bad := "C" + string(bytes.Repeat([]byte{'B'}, 55))
	got, err := enc.Encode(bad)
	require.NoError(t, err)
	assert.Equal(t, tv.String(bad), got)
	assert.Equal(t, []string{bad}, reported)
}

func TestLocationProofFieldOrder(t *testing.T) {
	proof := tv.LocationProof{Proof: []byte{0xde, 0xad}, PublicInputs: []uint32{42, 7}}

	got, err := tv.Encode(proof)
	require.NoError(t, err)

	m, ok := got.(tv.Map)
	require.True(t, ok)
	require.Len(t, m, 2)
	assert.Equal(t, tv.Symbol("proof"), m[0].Key)
	assert.Equal(t, tv.Bytes{0xde, 0xad}, m[0].Val)
	assert.Equal(t, tv.Symbol("public_inputs"), m[1].Key)
	assert.Equal(t, tv.Vec{tv.U32(42), tv.U32(7)}, m[1].Val)

	// Also when passed by pointer.
	got, err = tv.Encode(&proof)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   tv.Value
		want any
	}{
		{"bool", tv.Bool(true), true},
		{"void", tv.Void{}, nil},
		{"u32", tv.U32(5), int64(5)},
		{"i32", tv.I32(-5), int64(-5)},
		{"u64", tv.U64(18446744073709551615), "18446744073709551615"},
		{"i64", tv.I64(-9), "-9"},
		{"u128", tv.U128{Hi: 1, Lo: 2}, tv.Parts{Hi: "1", Lo: "2"}},
		{"i128", tv.I128{Hi: -1, Lo: 3}, tv.Parts{Hi: "-1", Lo: "3"}},
		{"string", tv.String("s"), "s"},
		{"symbol", tv.Symbol("sym"), "sym"},
		{"bytes", tv.Bytes{1}, []byte{1}},
		{"address", tv.Address{Class: strkey.ClassAccount, Key: playerKey}, playerAddr},
		{"address from raw bytes", tv.Address{Raw: append([]byte{0, 0, 0, 1}, playerAddr...)}, playerAddr},
		{"unrenderable address", tv.Address{Raw: []byte{1, 2, 3}}, nil},
		{"vec", tv.Vec{tv.U32(1), tv.String("x")}, []any{int64(1), "x"}},
		{"map with symbol keys", tv.Map{
			{Key: tv.Symbol("id"), Val: tv.U32(12)},
			{Key: tv.U32(3), Val: tv.Bool(false)},
		}, tv.Record{{Name: "id", Value: int64(12)}, {Name: "3", Value: false}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tv.Decode(tt.in))
		})
	}
}

func TestDecodeEnumUnwrap(t *testing.T) {
	t.Run("unit variants unwrap case-insensitively", func(t *testing.T) {
		assert.Equal(t, "Active", tv.Decode(tv.Vec{tv.Symbol("Active")}))
		assert.Equal(t, "Waiting", tv.Decode(tv.Vec{tv.String("waiting")}))
		assert.Equal(t, "Ended", tv.Decode(tv.Vec{tv.Symbol("ENDED")}))
	})

	t.Run("other one-element vectors stay vectors", func(t *testing.T) {
		assert.Equal(t, []any{"Paused"}, tv.Decode(tv.Vec{tv.Symbol("Paused")}))
		assert.Equal(t, []any{int64(1)}, tv.Decode(tv.Vec{tv.U32(1)}))
		assert.Equal(t, []any{"Active", "Ended"}, tv.Decode(tv.Vec{tv.Symbol("Active"), tv.Symbol("Ended")}))
	})

	t.Run("address vectors are not unwrapped", func(t *testing.T) {
		addr := tv.Address{Class: strkey.ClassAccount, Key: playerKey}
		assert.Equal(t, []any{playerAddr}, tv.Decode(tv.Vec{addr}))
	})

	t.Run("variants are scoped to the decoder", func(t *testing.T) {
		dec := tv.NewDecoder(tv.WithEnumVariants("Open", "Closed"))
		assert.Equal(t, "Open", dec.Decode(tv.Vec{tv.Symbol("open")}))
		assert.Equal(t, []any{"Active"}, dec.Decode(tv.Vec{tv.Symbol("Active")}))
	})
}

func TestDecodeOptionalAddress(t *testing.T) {
	addr := tv.Address{Class: strkey.ClassAccount, Key: playerKey}

	tests := []struct {
		name   string
		in     tv.Value
		want   string
		wantOK bool
	}{
		{"void", tv.Void{}, "", false},
		{"bare address", addr, playerAddr, true},
		{"option wrapped", tv.Vec{addr}, playerAddr, true},
		{"address text", tv.String(playerAddr), playerAddr, true},
		{"other vector", tv.Vec{tv.U32(1)}, "", false},
		{"broken address", tv.Address{Raw: []byte("nope")}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tv.DecodeOptionalAddress(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Values produced by the contract decode, re-encode and decode to the same
// Go value.
func TestRoundTrip(t *testing.T) {
	session := tv.Map{
		{Key: tv.Symbol("created_ledger"), Val: tv.U32(100)},
		{Key: tv.Symbol("p1_asset_tag"), Val: tv.Bytes(bytes.Repeat([]byte{7}, 32))},
		{Key: tv.Symbol("p1_cell_id"), Val: tv.U32(42)},
		{Key: tv.Symbol("p2_cell_id"), Val: tv.Void{}},
		{Key: tv.Symbol("player1"), Val: tv.Address{Class: strkey.ClassAccount, Key: playerKey}},
		{Key: tv.Symbol("state"), Val: tv.Vec{tv.Symbol("Waiting")}},
	}

	values := []tv.Value{
		tv.Bool(false),
		tv.U32(4294967295),
		tv.I32(17),
		tv.String("plain"),
		tv.Bytes{1, 2, 3},
		tv.Address{Class: strkey.ClassContract, Key: contractKey},
		tv.Void{},
		tv.Vec{tv.U32(1), tv.Bool(true)},
		session,
	}

	for _, v := range values {
		t.Run(string(v.Type()), func(t *testing.T) {
			native := tv.Decode(v)
			again, err := tv.Encode(native)
			require.NoError(t, err)
			assert.Equal(t, native, tv.Decode(again))
		})
	}

	t.Run("primitive tags survive", func(t *testing.T) {
		for _, v := range []tv.Value{tv.Bool(true), tv.U32(9), tv.Bytes{4}, tv.Void{}, tv.Address{Class: strkey.ClassAccount, Key: playerKey}} {
			again, err := tv.Encode(tv.Decode(v))
			require.NoError(t, err)
			assert.Equal(t, v, again)
		}
	})
}

func TestRecordGet(t *testing.T) {
	rec := tv.Record{{Name: "a", Value: 1}, {Name: "b", Value: 2}}
	v, ok := rec.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = rec.Get("c")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, rec.Names())
}

func TestParseAddressRejectsSeed(t *testing.T) {
	seed := strkey.MustEncode(strkey.ClassSeed, playerKey)

	_, err := tv.ParseAddress(seed)
	require.ErrorIs(t, err, tv.ErrNotAddress)
	assert.NotContains(t, err.Error(), seed)

	// Seed text is never mistaken for an address anywhere else either.
	v, err := tv.Encode(seed)
	require.NoError(t, err)
	assert.Equal(t, tv.String(seed), v)

	_, ok := tv.DecodeOptionalAddress(tv.String(seed))
	assert.False(t, ok)
	assert.Nil(t, tv.Decode(tv.Address{Class: strkey.ClassSeed, Key: playerKey}))
	assert.Nil(t, tv.Decode(tv.Address{Raw: []byte(seed)}))
}
