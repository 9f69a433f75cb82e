package sign

import (
	"context"
	"errors"

	"github.com/stellar/go/xdr"

	"github.com/geotrust-match/matchnode/pkg/ledger"
)

// ErrDeclined is returned by a Signer when the key holder refuses to sign.
var ErrDeclined = errors.New("signature declined")

// Signer signs envelopes for a single account.
type Signer interface {
	// Address is the account the signer signs for.
	Address() string
	// SignEnvelope signs envelope for the network identified by networkPassphrase.
	SignEnvelope(ctx context.Context, envelope []byte, networkPassphrase string) (ledger.SignedEnvelope, error)
}

// hint is the last four bytes of a public key; it tells the ledger which key
// a decorated signature belongs to.
func hint(public []byte) xdr.SignatureHint {
	var h xdr.SignatureHint
	if len(public) >= len(h) {
		copy(h[:], public[len(public)-len(h):])
	}
	return h
}
