package strkey_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geotrust-match/matchnode/pkg/strkey"
)

func TestEncodeDecode(t *testing.T) {
	key := bytes.Repeat([]byte{0x5a}, strkey.KeyLen)

	for _, class := range []strkey.Class{strkey.ClassAccount, strkey.ClassContract} {
		t.Run(class.String(), func(t *testing.T) {
			addr, err := strkey.Encode(class, key)
			require.NoError(t, err)
			assert.Len(t, addr, strkey.EncodedLen)

			gotClass, gotKey, err := strkey.Decode(addr)
			require.NoError(t, err)
			assert.Equal(t, class, gotClass)
			assert.Equal(t, key, gotKey)
			assert.True(t, strkey.IsValid(class, addr))
		})
	}
}

func TestKnownAccountAddress(t *testing.T) {
	// The all-zero account key is a well known address.
	addr := strkey.MustEncode(strkey.ClassAccount, make([]byte, strkey.KeyLen))
	assert.Equal(t, "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF", addr)
}

func TestDecodeErrors(t *testing.T) {
	valid := strkey.MustEncode(strkey.ClassContract, bytes.Repeat([]byte{1}, strkey.KeyLen))

	_, _, err := strkey.Decode(valid[:55])
	assert.ErrorIs(t, err, strkey.ErrInvalidLength)

	tests := []struct {
		name  string
		input string
	}{
		{"bad alphabet", "1" + valid[1:]},
		{"checksum", valid[:10] + flip(valid[10]) + valid[11:]},
		{"pre-auth tx class", "T" + valid[1:]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := strkey.Decode(tt.input)
			assert.Error(t, err)
		})
	}

	assert.False(t, strkey.IsValid(strkey.ClassAccount, valid))
}

func TestClassIsPublic(t *testing.T) {
	assert.True(t, strkey.ClassAccount.IsPublic())
	assert.True(t, strkey.ClassContract.IsPublic())
	assert.False(t, strkey.ClassSeed.IsPublic())
}

func TestEncodeRejectsBadInput(t *testing.T) {
	_, err := strkey.Encode(strkey.ClassAccount, []byte{1, 2, 3})
	assert.ErrorIs(t, err, strkey.ErrInvalidLength)

	_, err = strkey.Encode(strkey.Class(99), make([]byte, strkey.KeyLen))
	assert.ErrorIs(t, err, strkey.ErrUnknownClass)
}

func flip(c byte) string {
	if c == 'A' {
		return "B"
	}
	return "A"
}
