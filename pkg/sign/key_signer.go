package sign

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stellar/go/xdr"

	"github.com/geotrust-match/matchnode/pkg/ledger"
	"github.com/geotrust-match/matchnode/pkg/strkey"
)

var _ Signer = (*KeySigner)(nil)

// ErrInvalidSignature is returned by Verify.
var ErrInvalidSignature = errors.New("invalid signature")

// KeySigner signs with an ed25519 key held in memory.
type KeySigner struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	address string
}

// NewKeySigner builds a signer from a secret seed: either an S-prefixed
// strkey or 0x-prefixed hex of the 32 seed bytes.
func NewKeySigner(seed string) (*KeySigner, error) {
	var raw []byte
	switch {
	case strings.HasPrefix(seed, "S"):
		class, key, err := strkey.Decode(seed)
		if err != nil {
			return nil, fmt.Errorf("decode seed: %w", err)
		}
		if class != strkey.ClassSeed {
			return nil, fmt.Errorf("decode seed: got %s key", class)
		}
		raw = key
	case strings.HasPrefix(seed, "0x"):
		b, err := hexutil.Decode(seed)
		if err != nil {
			return nil, fmt.Errorf("decode seed: %w", err)
		}
		raw = b
	default:
		return nil, errors.New("seed must be an S... strkey or 0x-prefixed hex")
	}

	if len(raw) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(raw))
	}
	private := ed25519.NewKeyFromSeed(raw)
	public, ok := private.Public().(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("unexpected public key type")
	}
	address, err := strkey.Encode(strkey.ClassAccount, public)
	if err != nil {
		return nil, err
	}
	return &KeySigner{private: private, public: public, address: address}, nil
}

func (s *KeySigner) Address() string {
	return s.address
}

// Seed returns the S-prefixed secret seed.
func (s *KeySigner) Seed() string {
	return strkey.MustEncode(strkey.ClassSeed, s.private.Seed())
}

// SignEnvelope signs the transaction hash and appends the decorated signature
// to the envelope.
func (s *KeySigner) SignEnvelope(ctx context.Context, envelope []byte, networkPassphrase string) (ledger.SignedEnvelope, error) {
	if err := ctx.Err(); err != nil {
		return ledger.SignedEnvelope{}, err
	}
	env, err := ledger.DecodeEnvelope(envelope)
	if err != nil {
		return ledger.SignedEnvelope{}, err
	}
	hash, sum, err := ledger.HashEnvelope(envelope, networkPassphrase)
	if err != nil {
		return ledger.SignedEnvelope{}, err
	}

	env.V1.Signatures = append(env.V1.Signatures, xdr.DecoratedSignature{
		Hint:      hint(s.public),
		Signature: ed25519.Sign(s.private, sum[:]),
	})
	signed, err := env.MarshalBinary()
	if err != nil {
		return ledger.SignedEnvelope{}, fmt.Errorf("encode signed envelope: %w", err)
	}
	return ledger.SignedEnvelope{Envelope: signed, Hash: hash}, nil
}

// Verify checks that env carries a signature over its transaction hash on
// networkPassphrase by the key of address.
func Verify(env ledger.SignedEnvelope, networkPassphrase, address string) error {
	class, key, err := strkey.Decode(address)
	if err != nil || class != strkey.ClassAccount {
		return fmt.Errorf("%w: signer is not an account address", ErrInvalidSignature)
	}
	decoded, err := ledger.DecodeEnvelope(env.Envelope)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	_, sum, err := ledger.HashEnvelope(env.Envelope, networkPassphrase)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	want := hint(key)
	for _, sig := range decoded.V1.Signatures {
		if sig.Hint == want && ed25519.Verify(ed25519.PublicKey(key), sum[:], sig.Signature) {
			return nil
		}
	}
	return ErrInvalidSignature
}
