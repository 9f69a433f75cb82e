package ledger

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"

	"github.com/geotrust-match/matchnode/pkg/strkey"
	"github.com/geotrust-match/matchnode/pkg/typedvalue"
)

// BaseFee is the inclusion fee, in stroops, offered for every transaction.
const BaseFee int64 = 100

// SimulationSource is the all-zero account. Read-only calls are simulated
// from it when no source account is configured; simulation never checks it.
var SimulationSource = strkey.MustEncode(strkey.ClassAccount, make([]byte, strkey.KeyLen))

// ErrNotInvocation is returned by ParseEnvelope for envelopes that are not a
// single contract invocation.
var ErrNotInvocation = errors.New("envelope is not a contract invocation")

// Account is the on-ledger state of a transaction source.
type Account struct {
	Address  string
	Sequence int64
}

// Operation invokes one contract function.
type Operation struct {
	ContractID string
	Function   string
	Args       []typedvalue.Value
}

// Resources is what a simulation computed for a transaction: the base64
// SorobanTransactionData carrying footprint and resource fee, and the
// authorization entries the invocation needs.
type Resources struct {
	MinResourceFee  int64
	TransactionData string
	Auth            []string
}

// Transaction is a single-operation transaction. Resources is nil until the
// transaction has been assembled from a simulation.
type Transaction struct {
	Source    string
	Sequence  int64
	Fee       int64
	Operation Operation
	Resources *Resources
}

// XDR builds the unsigned transaction envelope.
func (tx *Transaction) XDR() (xdr.TransactionEnvelope, error) {
	source, err := accountKey(tx.Source)
	if err != nil {
		return xdr.TransactionEnvelope{}, fmt.Errorf("source: %w", err)
	}
	if tx.Fee < 0 || tx.Fee > math.MaxUint32 {
		return xdr.TransactionEnvelope{}, fmt.Errorf("fee %d out of range", tx.Fee)
	}

	contract, err := typedvalue.ParseAddress(tx.Operation.ContractID)
	if err != nil || contract.Class != strkey.ClassContract {
		return xdr.TransactionEnvelope{}, fmt.Errorf("contract id %q is not a contract address", tx.Operation.ContractID)
	}
	contractAddr, err := typedvalue.AddressToXDR(contract)
	if err != nil {
		return xdr.TransactionEnvelope{}, err
	}

	args := make([]xdr.ScVal, len(tx.Operation.Args))
	for i, a := range tx.Operation.Args {
		sc, err := typedvalue.ToXDR(a)
		if err != nil {
			return xdr.TransactionEnvelope{}, fmt.Errorf("%s arg %d: %w", tx.Operation.Function, i, err)
		}
		args[i] = sc
	}

	op := xdr.InvokeHostFunctionOp{
		HostFunction: xdr.HostFunction{
			Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
			InvokeContract: &xdr.InvokeContractArgs{
				ContractAddress: contractAddr,
				FunctionName:    xdr.ScSymbol(tx.Operation.Function),
				Args:            args,
			},
		},
	}

	ext := xdr.TransactionExt{V: 0}
	if res := tx.Resources; res != nil {
		var data xdr.SorobanTransactionData
		if err := xdr.SafeUnmarshalBase64(res.TransactionData, &data); err != nil {
			return xdr.TransactionEnvelope{}, fmt.Errorf("transaction data: %w", err)
		}
		ext = xdr.TransactionExt{V: 1, SorobanData: &data}

		for i, raw := range res.Auth {
			var entry xdr.SorobanAuthorizationEntry
			if err := xdr.SafeUnmarshalBase64(raw, &entry); err != nil {
				return xdr.TransactionEnvelope{}, fmt.Errorf("auth entry %d: %w", i, err)
			}
			op.Auth = append(op.Auth, entry)
		}
	}

	pk := xdr.Uint256(source)
	return xdr.TransactionEnvelope{
		Type: xdr.EnvelopeTypeEnvelopeTypeTx,
		V1: &xdr.TransactionV1Envelope{
			Tx: xdr.Transaction{
				SourceAccount: xdr.MuxedAccount{Type: xdr.CryptoKeyTypeKeyTypeEd25519, Ed25519: &pk},
				Fee:           xdr.Uint32(tx.Fee),
				SeqNum:        xdr.SequenceNumber(tx.Sequence),
				Cond:          xdr.Preconditions{Type: xdr.PreconditionTypePrecondNone},
				Memo:          xdr.Memo{Type: xdr.MemoTypeMemoNone},
				Operations: []xdr.Operation{{
					Body: xdr.OperationBody{
						Type:                 xdr.OperationTypeInvokeHostFunction,
						InvokeHostFunctionOp: &op,
					},
				}},
				Ext: ext,
			},
		},
	}, nil
}

// Envelope returns the XDR bytes a signer signs and the ledger receives.
func (tx *Transaction) Envelope() ([]byte, error) {
	env, err := tx.XDR()
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return env.MarshalBinary()
}

// DecodeEnvelope parses envelope bytes.
func DecodeEnvelope(envelope []byte) (xdr.TransactionEnvelope, error) {
	var env xdr.TransactionEnvelope
	if err := xdr.SafeUnmarshal(envelope, &env); err != nil {
		return xdr.TransactionEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type != xdr.EnvelopeTypeEnvelopeTypeTx || env.V1 == nil {
		return xdr.TransactionEnvelope{}, fmt.Errorf("decode envelope: unsupported envelope type %s", env.Type)
	}
	return env, nil
}

// ParseEnvelope is the inverse of Transaction.Envelope. Signatures are ignored.
func ParseEnvelope(envelope []byte) (*Transaction, error) {
	env, err := DecodeEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	x := env.V1.Tx

	if len(x.Operations) != 1 {
		return nil, ErrNotInvocation
	}
	body := x.Operations[0].Body
	if body.Type != xdr.OperationTypeInvokeHostFunction || body.InvokeHostFunctionOp == nil {
		return nil, ErrNotInvocation
	}
	op := body.InvokeHostFunctionOp
	invoke := op.HostFunction.InvokeContract
	if op.HostFunction.Type != xdr.HostFunctionTypeHostFunctionTypeInvokeContract || invoke == nil {
		return nil, ErrNotInvocation
	}

	if x.SourceAccount.Type != xdr.CryptoKeyTypeKeyTypeEd25519 || x.SourceAccount.Ed25519 == nil {
		return nil, errors.New("decode envelope: unsupported source account")
	}
	key := *x.SourceAccount.Ed25519
	source, err := strkey.Encode(strkey.ClassAccount, key[:])
	if err != nil {
		return nil, err
	}

	args := make([]typedvalue.Value, len(invoke.Args))
	for i, sc := range invoke.Args {
		v, err := typedvalue.FromXDR(sc)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		args[i] = v
	}

	tx := &Transaction{
		Source:   source,
		Sequence: int64(x.SeqNum),
		Fee:      int64(x.Fee),
		Operation: Operation{
			ContractID: typedvalue.AddressFromXDR(invoke.ContractAddress).String(),
			Function:   string(invoke.FunctionName),
			Args:       args,
		},
	}

	if x.Ext.V == 1 && x.Ext.SorobanData != nil {
		data, err := xdr.MarshalBase64(*x.Ext.SorobanData)
		if err != nil {
			return nil, err
		}
		res := &Resources{MinResourceFee: int64(x.Ext.SorobanData.ResourceFee), TransactionData: data}
		for _, entry := range op.Auth {
			raw, err := xdr.MarshalBase64(entry)
			if err != nil {
				return nil, err
			}
			res.Auth = append(res.Auth, raw)
		}
		tx.Resources = res
	}
	return tx, nil
}

// Assemble returns a copy of tx carrying the simulation's resources, with the
// resource fee added on top of the base fee.
func Assemble(tx *Transaction, sim *Simulation) *Transaction {
	out := *tx
	res := sim.Resources
	res.Auth = append([]string(nil), sim.Resources.Auth...)
	out.Resources = &res
	out.Fee = tx.Fee + res.MinResourceFee
	return &out
}

// Simulation is the outcome of a dry run. Error is set when the contract or
// the host rejected the call.
type Simulation struct {
	Resources    Resources
	ReturnValue  typedvalue.Value
	Error        string
	LatestLedger uint32
}

// SignedEnvelope is an envelope carrying the source account's signature, and
// the hash of the transaction inside it.
type SignedEnvelope struct {
	Envelope []byte
	Hash     string
}

// HashEnvelope returns the hex transaction hash of envelope on the network
// identified by passphrase. Signatures do not change it.
func HashEnvelope(envelope []byte, passphrase string) (string, [32]byte, error) {
	env, err := DecodeEnvelope(envelope)
	if err != nil {
		return "", [32]byte{}, err
	}
	h, err := network.HashTransactionInEnvelope(env, passphrase)
	if err != nil {
		return "", [32]byte{}, fmt.Errorf("hash envelope: %w", err)
	}
	return hex.EncodeToString(h[:]), h, nil
}

// SubmitStatus is the ledger's answer to a submission.
type SubmitStatus string

const (
	StatusPending       SubmitStatus = "PENDING"
	StatusDuplicate     SubmitStatus = "DUPLICATE"
	StatusTryAgainLater SubmitStatus = "TRY_AGAIN_LATER"
	StatusError         SubmitStatus = "ERROR"
)

// SubmitResult is returned by Client.Submit.
type SubmitResult struct {
	Hash         string
	Status       SubmitStatus
	Error        string
	LatestLedger uint32
}

// accountKey returns the raw key of an account address.
func accountKey(address string) ([strkey.KeyLen]byte, error) {
	var key [strkey.KeyLen]byte
	class, raw, err := strkey.Decode(address)
	if err != nil {
		return key, fmt.Errorf("account %q: %w", address, err)
	}
	if class != strkey.ClassAccount {
		return key, fmt.Errorf("not an account address: got %s key", class)
	}
	copy(key[:], raw)
	return key, nil
}

// AccountID returns the ledger form of an account address.
func AccountID(address string) (xdr.AccountId, error) {
	key, err := accountKey(address)
	if err != nil {
		return xdr.AccountId{}, err
	}
	pk := xdr.Uint256(key)
	return xdr.AccountId{Type: xdr.PublicKeyTypePublicKeyTypeEd25519, Ed25519: &pk}, nil
}
