package sign_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geotrust-match/matchnode/pkg/ledger"
	"github.com/geotrust-match/matchnode/pkg/sign"
	"github.com/geotrust-match/matchnode/pkg/strkey"
)

const (
	testnet = "Test SDF Network ; September 2015"
	pubnet  = "Public Global Stellar Network ; September 2015"
)

var contractID = strkey.MustEncode(strkey.ClassContract, bytes.Repeat([]byte{7}, strkey.KeyLen))

func testKey(t *testing.T, b byte) *sign.KeySigner {
	t.Helper()
	s, err := sign.NewKeySigner("0x" + hex.EncodeToString(bytes.Repeat([]byte{b}, 32)))
	require.NoError(t, err)
	return s
}

func envelopeFor(t *testing.T, source string) []byte {
	t.Helper()
	tx := &ledger.Transaction{
		Source:    source,
		Sequence:  1,
		Fee:       ledger.BaseFee,
		Operation: ledger.Operation{ContractID: contractID, Function: "create_session"},
	}
	envelope, err := tx.Envelope()
	require.NoError(t, err)
	return envelope
}

func TestKeySigner(t *testing.T) {
	signer := testKey(t, 1)
	assert.True(t, strkey.IsValid(strkey.ClassAccount, signer.Address()))

	envelope := envelopeFor(t, signer.Address())
	env, err := signer.SignEnvelope(context.Background(), envelope, testnet)
	require.NoError(t, err)

	wantHash, _, err := ledger.HashEnvelope(envelope, testnet)
	require.NoError(t, err)
	assert.Equal(t, wantHash, env.Hash)

	decoded, err := ledger.DecodeEnvelope(env.Envelope)
	require.NoError(t, err)
	require.Len(t, decoded.V1.Signatures, 1)

	parsed, err := ledger.ParseEnvelope(env.Envelope)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), parsed.Source)

	require.NoError(t, sign.Verify(env, testnet, signer.Address()))
	assert.ErrorIs(t, sign.Verify(env, pubnet, signer.Address()), sign.ErrInvalidSignature)
	assert.ErrorIs(t, sign.Verify(env, testnet, testKey(t, 2).Address()), sign.ErrInvalidSignature)

	unsigned := ledger.SignedEnvelope{Envelope: envelope, Hash: env.Hash}
	assert.ErrorIs(t, sign.Verify(unsigned, testnet, signer.Address()), sign.ErrInvalidSignature)

	assert.ErrorIs(t, sign.Verify(ledger.SignedEnvelope{Envelope: []byte("junk")}, testnet, signer.Address()), sign.ErrInvalidSignature)
}

func TestKeySignerRejectsNonEnvelope(t *testing.T) {
	_, err := testKey(t, 1).SignEnvelope(context.Background(), []byte("not an envelope"), testnet)
	assert.Error(t, err)
}

func TestKeySignerCancelled(t *testing.T) {
	signer := testKey(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := signer.SignEnvelope(ctx, envelopeFor(t, signer.Address()), testnet)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVerifyDoesNotEchoSeed(t *testing.T) {
	signer := testKey(t, 1)
	env, err := signer.SignEnvelope(context.Background(), envelopeFor(t, signer.Address()), testnet)
	require.NoError(t, err)

	err = sign.Verify(env, testnet, signer.Seed())
	require.ErrorIs(t, err, sign.ErrInvalidSignature)
	assert.NotContains(t, err.Error(), signer.Seed())
}

func TestNewKeySigner(t *testing.T) {
	known := testKey(t, 3)

	t.Run("strkey seed", func(t *testing.T) {
		restored, err := sign.NewKeySigner(known.Seed())
		require.NoError(t, err)
		assert.Equal(t, known.Address(), restored.Address())
	})

	t.Run("hex seed", func(t *testing.T) {
		s, err := sign.NewKeySigner("0x" + "0101010101010101010101010101010101010101010101010101010101010101")
		require.NoError(t, err)
		assert.Equal(t, byte('G'), s.Address()[0])
		assert.Equal(t, testKey(t, 1).Address(), s.Address())
	})

	t.Run("invalid", func(t *testing.T) {
		for _, seed := range []string{"", "0x01", "nonsense", known.Address()} {
			_, err := sign.NewKeySigner(seed)
			assert.Error(t, err, seed)
		}
	})
}

func TestMockSigner(t *testing.T) {
	key := testKey(t, 4)
	m := sign.NewMockSigner(key)
	assert.Equal(t, key.Address(), m.Address())

	envelope := envelopeFor(t, key.Address())
	env, err := m.SignEnvelope(context.Background(), envelope, testnet)
	require.NoError(t, err)
	require.NoError(t, sign.Verify(env, testnet, key.Address()))
	assert.Equal(t, testnet, m.LastPassphrase())

	m.Decline()
	_, err = m.SignEnvelope(context.Background(), envelope, testnet)
	assert.ErrorIs(t, err, sign.ErrDeclined)

	boom := errors.New("wallet unreachable")
	m.FailWith(boom)
	_, err = m.SignEnvelope(context.Background(), envelope, testnet)
	assert.ErrorIs(t, err, boom)

	m.FailWith(nil)
	_, err = m.SignEnvelope(context.Background(), envelope, pubnet)
	require.NoError(t, err)
	assert.Equal(t, pubnet, m.LastPassphrase())

	assert.Equal(t, 4, m.CallCount())
}
