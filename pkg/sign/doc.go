// Package sign signs transaction envelopes on behalf of a ledger account.
//
// The contract layer never holds key material: it hands an envelope and the
// network passphrase to a Signer and gets a ledger.SignedEnvelope back. A
// wallet bridge implements Signer by forwarding to the user's wallet, which
// may refuse; that refusal is reported as ErrDeclined.
//
// KeySigner signs with a local ed25519 seed and is meant for development
// networks and automation accounts. MockSigner is for tests.
package sign
