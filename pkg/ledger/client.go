// Package ledger talks to a Soroban RPC server: account lookups, transaction
// simulation, submission and ledger progress. Transactions travel as XDR
// envelopes built with github.com/stellar/go/xdr.
package ledger

import "context"

// Client is the ledger capability the contract layer depends on.
type Client interface {
	// GetAccount returns the current state of address.
	GetAccount(ctx context.Context, address string) (Account, error)
	// Simulate dry-runs tx. A rejection by the contract is reported in
	// Simulation.Error; the returned error is for transport failures.
	Simulate(ctx context.Context, tx *Transaction) (*Simulation, error)
	// Prepare attaches the simulated resources and fee to tx.
	Prepare(ctx context.Context, tx *Transaction, sim *Simulation) (*Transaction, error)
	// Submit sends a signed transaction.
	Submit(ctx context.Context, env SignedEnvelope) (*SubmitResult, error)
	// LatestLedger returns the sequence number of the newest closed ledger.
	LatestLedger(ctx context.Context) (uint32, error)
}
