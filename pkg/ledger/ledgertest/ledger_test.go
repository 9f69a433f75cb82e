package ledgertest_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"testing"

	"github.com/stellar/go/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geotrust-match/matchnode/pkg/ledger"
	"github.com/geotrust-match/matchnode/pkg/ledger/ledgertest"
	"github.com/geotrust-match/matchnode/pkg/sign"
	"github.com/geotrust-match/matchnode/pkg/strkey"
	tv "github.com/geotrust-match/matchnode/pkg/typedvalue"
)

var contractID = strkey.MustEncode(strkey.ClassContract, bytes.Repeat([]byte{7}, 32))

func key(t *testing.T, b byte) *sign.KeySigner {
	t.Helper()
	s, err := sign.NewKeySigner("0x" + hex.EncodeToString(bytes.Repeat([]byte{b}, 32)))
	require.NoError(t, err)
	return s
}

// prepared returns the envelope of an init call by source, ready to sign.
func prepared(t *testing.T, l *ledgertest.Ledger, source string) []byte {
	t.Helper()
	ctx := context.Background()
	args, err := tv.EncodeAll(source, true)
	require.NoError(t, err)

	tx := &ledger.Transaction{
		Source:    source,
		Sequence:  11,
		Fee:       ledger.BaseFee,
		Operation: ledger.Operation{ContractID: contractID, Function: "init", Args: args},
	}
	sim, err := l.Simulate(ctx, tx)
	require.NoError(t, err)
	require.Empty(t, sim.Error)
	require.NotEmpty(t, sim.Resources.TransactionData)

	ready, err := l.Prepare(ctx, tx, sim)
	require.NoError(t, err)
	envelope, err := ready.Envelope()
	require.NoError(t, err)
	return envelope
}

func newLedger(t *testing.T, source string, opts ...ledgertest.Option) *ledgertest.Ledger {
	t.Helper()
	l := ledgertest.New(opts...)
	l.Deploy(contractID, ledgertest.NewGeoTrust())
	l.AddAccount(source, 10)
	return l
}

func TestSubmitVerifiesSignature(t *testing.T) {
	ctx := context.Background()
	owner := key(t, 5)

	tests := []struct {
		name string
		sign func(envelope []byte) ledger.SignedEnvelope
	}{
		{"unsigned", func(envelope []byte) ledger.SignedEnvelope {
			return ledger.SignedEnvelope{Envelope: envelope}
		}},
		{"other key", func(envelope []byte) ledger.SignedEnvelope {
			env, err := key(t, 6).SignEnvelope(ctx, envelope, network.TestNetworkPassphrase)
			require.NoError(t, err)
			return env
		}},
		{"other network", func(envelope []byte) ledger.SignedEnvelope {
			env, err := owner.SignEnvelope(ctx, envelope, network.PublicNetworkPassphrase)
			require.NoError(t, err)
			return env
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t, owner.Address())
			res, err := l.Submit(ctx, tt.sign(prepared(t, l, owner.Address())))
			require.NoError(t, err)
			assert.Equal(t, ledger.StatusError, res.Status)
			assert.Equal(t, "txBadAuth", res.Error)
			assert.NotEmpty(t, res.Hash)

			seq, _ := l.Account(owner.Address())
			assert.Equal(t, int64(10), seq, "a rejected transaction does not consume the sequence")
			assert.Empty(t, l.Submitted())
		})
	}

	t.Run("signed by the source", func(t *testing.T) {
		l := newLedger(t, owner.Address())
		env, err := owner.SignEnvelope(ctx, prepared(t, l, owner.Address()), network.TestNetworkPassphrase)
		require.NoError(t, err)

		res, err := l.Submit(ctx, env)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPending, res.Status)
		assert.Equal(t, env.Hash, res.Hash)
		seq, _ := l.Account(owner.Address())
		assert.Equal(t, int64(11), seq)
		assert.Len(t, l.Submitted(), 1)
	})

	t.Run("custom passphrase", func(t *testing.T) {
		l := newLedger(t, owner.Address(), ledgertest.WithPassphrase(network.PublicNetworkPassphrase))
		env, err := owner.SignEnvelope(ctx, prepared(t, l, owner.Address()), network.PublicNetworkPassphrase)
		require.NoError(t, err)

		res, err := l.Submit(ctx, env)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPending, res.Status)
	})
}
