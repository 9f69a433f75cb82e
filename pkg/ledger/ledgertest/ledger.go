// Package ledgertest provides an in-memory ledger.Client and a GeoTrust
// contract for tests.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"

	"github.com/geotrust-match/matchnode/pkg/ledger"
	"github.com/geotrust-match/matchnode/pkg/sign"
	"github.com/geotrust-match/matchnode/pkg/typedvalue"
)

// Call is one contract invocation as seen by a Contract.
type Call struct {
	Source   string
	Function string
	Args     []typedvalue.Value
	Ledger   uint32
}

// Contract is a contract deployed on the in-memory ledger.
type Contract interface {
	Invoke(call Call) (typedvalue.Value, error)
	// Clone returns an independent copy, used for simulation.
	Clone() Contract
}

var ErrAccountUnavailable = errors.New("account lookup failed")

var _ ledger.Client = (*Ledger)(nil)

// Ledger is an in-memory ledger.Client. Every accepted submission bumps the
// source account's sequence and, unless stalled, closes a ledger.
type Ledger struct {
	passphrase string

	mu             sync.Mutex
	sequence       uint32
	stalled        bool
	accounts       map[string]int64
	contracts      map[string]Contract
	accountErrs    int
	simulateErrs   map[string]error
	submitOverride *ledger.SubmitResult
	calls          map[string]int
	submitted      []*ledger.Transaction
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPassphrase sets the network passphrase signatures are checked against.
// The default is the test network's.
func WithPassphrase(passphrase string) Option {
	return func(l *Ledger) {
		l.passphrase = passphrase
	}
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		passphrase:   network.TestNetworkPassphrase,
		sequence:     1,
		accounts:     map[string]int64{},
		contracts:    map[string]Contract{},
		simulateErrs: map[string]error{},
		calls:        map[string]int{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddAccount creates or resets an account.
func (l *Ledger) AddAccount(address string, sequence int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[address] = sequence
}

// Deploy installs c under contractID.
func (l *Ledger) Deploy(contractID string, c Contract) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.contracts[contractID] = c
}

// FailAccountLookups makes the next n GetAccount calls fail.
func (l *Ledger) FailAccountLookups(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accountErrs = n
}

// FailSimulation makes every simulation of function fail with err as a transport error.
func (l *Ledger) FailSimulation(function string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.simulateErrs[function] = err
}

// OverrideSubmit makes every submission return res without executing.
func (l *Ledger) OverrideSubmit(res *ledger.SubmitResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.submitOverride = res
}

// Stall stops ledgers from closing on submission.
func (l *Ledger) Stall(stalled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stalled = stalled
}

// CloseLedger advances the ledger sequence by one.
func (l *Ledger) CloseLedger() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sequence++
}

// Account returns the stored sequence of address.
func (l *Ledger) Account(address string) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	seq, ok := l.accounts[address]
	return seq, ok
}

// Calls returns how many times method was called.
func (l *Ledger) Calls(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[method]
}

// Submitted returns the transactions accepted so far.
func (l *Ledger) Submitted() []*ledger.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*ledger.Transaction(nil), l.submitted...)
}

func (l *Ledger) GetAccount(ctx context.Context, address string) (ledger.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls["GetAccount"]++

	if err := ctx.Err(); err != nil {
		return ledger.Account{}, err
	}
	if l.accountErrs > 0 {
		l.accountErrs--
		return ledger.Account{}, ErrAccountUnavailable
	}
	seq, ok := l.accounts[address]
	if !ok {
		return ledger.Account{}, fmt.Errorf("account %s not found", address)
	}
	return ledger.Account{Address: address, Sequence: seq}, nil
}

func (l *Ledger) Simulate(ctx context.Context, tx *ledger.Transaction) (*ledger.Simulation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls["Simulate"]++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.simulateErrs[tx.Operation.Function]; err != nil {
		return nil, err
	}

	sim := &ledger.Simulation{LatestLedger: l.sequence}
	c, ok := l.contracts[tx.Operation.ContractID]
	if !ok {
		sim.Error = "HostError: contract not found"
		return sim, nil
	}

	ret, err := c.Clone().Invoke(l.call(tx))
	if err != nil {
		sim.Error = "HostError: " + err.Error()
		return sim, nil
	}
	fee := 50_000 + 1_000*int64(len(tx.Operation.Args))
	data, err := xdr.MarshalBase64(xdr.SorobanTransactionData{
		Resources: xdr.SorobanResources{
			Instructions: 1_000_000,
			ReadBytes:    1_024,
			WriteBytes:   512,
		},
		ResourceFee: xdr.Int64(fee),
	})
	if err != nil {
		return nil, err
	}
	sim.ReturnValue = ret
	sim.Resources = ledger.Resources{MinResourceFee: fee, TransactionData: data}
	return sim, nil
}

func (l *Ledger) Prepare(_ context.Context, tx *ledger.Transaction, sim *ledger.Simulation) (*ledger.Transaction, error) {
	l.mu.Lock()
	l.calls["Prepare"]++
	l.mu.Unlock()

	if sim.Error != "" {
		return nil, fmt.Errorf("prepare from failed simulation: %s", sim.Error)
	}
	return ledger.Assemble(tx, sim), nil
}

func (l *Ledger) Submit(ctx context.Context, env ledger.SignedEnvelope) (*ledger.SubmitResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls["Submit"]++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.submitOverride != nil {
		res := *l.submitOverride
		return &res, nil
	}

	res := &ledger.SubmitResult{Hash: env.Hash, LatestLedger: l.sequence}
	reject := func(reason string) (*ledger.SubmitResult, error) {
		res.Status = ledger.StatusError
		res.Error = reason
		return res, nil
	}

	tx, err := ledger.ParseEnvelope(env.Envelope)
	if err != nil {
		return reject("txMalformed")
	}
	if res.Hash == "" {
		res.Hash, _, _ = ledger.HashEnvelope(env.Envelope, l.passphrase)
	}
	if err := sign.Verify(env, l.passphrase, tx.Source); err != nil {
		return reject("txBadAuth")
	}
	seq, ok := l.accounts[tx.Source]
	if !ok {
		return reject("txNoAccount")
	}
	if tx.Sequence != seq+1 {
		return reject("txBadSeq")
	}
	if tx.Resources == nil {
		return reject("txSorobanInvalid")
	}
	c, ok := l.contracts[tx.Operation.ContractID]
	if !ok {
		return reject("txFailed: contract not found")
	}
	if _, err := c.Invoke(l.call(tx)); err != nil {
		return reject("txFailed: " + err.Error())
	}

	l.accounts[tx.Source] = tx.Sequence
	l.submitted = append(l.submitted, tx)
	if !l.stalled {
		l.sequence++
	}
	res.Status = ledger.StatusPending
	return res, nil
}

func (l *Ledger) LatestLedger(ctx context.Context) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls["LatestLedger"]++

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return l.sequence, nil
}

func (l *Ledger) call(tx *ledger.Transaction) Call {
	return Call{
		Source:   tx.Source,
		Function: tx.Operation.Function,
		Args:     tx.Operation.Args,
		Ledger:   l.sequence,
	}
}
