package ledger

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/stellar/go/xdr"

	"github.com/geotrust-match/matchnode/pkg/log"
	"github.com/geotrust-match/matchnode/pkg/typedvalue"
)

const (
	methodGetLedgerEntries = "getLedgerEntries"
	methodSimulate         = "simulateTransaction"
	methodSendTransaction  = "sendTransaction"
	methodLatestLedger     = "getLatestLedger"
)

// ErrAccountNotFound is returned by GetAccount when the ledger has no entry
// for the account.
var ErrAccountNotFound = errors.New("account not found")

var _ Client = (*RPCClient)(nil)

// caller is the subset of *rpc.Client used here.
type caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// RPCClient is a Client speaking JSON-RPC 2.0 to a Soroban RPC server.
type RPCClient struct {
	rpc    caller
	closer func()
	logger log.Logger
}

// Dial connects to the server at url. http(s) and ws(s) URLs are supported.
func Dial(ctx context.Context, url string, logger log.Logger) (*RPCClient, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "dial ledger rpc %s", url)
	}
	client := NewRPCClient(c, logger)
	client.closer = c.Close
	return client, nil
}

// NewRPCClient wraps an established connection.
func NewRPCClient(c caller, logger log.Logger) *RPCClient {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &RPCClient{rpc: c, closer: func() {}, logger: logger.WithName("ledger-rpc")}
}

func (c *RPCClient) Close() {
	c.closer()
}

type ledgerEntriesRequest struct {
	Keys []string `json:"keys"`
}

type ledgerEntriesResponse struct {
	Entries []struct {
		Key                   string `json:"key"`
		XDR                   string `json:"xdr"`
		LastModifiedLedgerSeq uint32 `json:"lastModifiedLedgerSeq"`
	} `json:"entries"`
	LatestLedger uint32 `json:"latestLedger"`
}

// GetAccount reads the account's ledger entry.
func (c *RPCClient) GetAccount(ctx context.Context, address string) (Account, error) {
	id, err := AccountID(address)
	if err != nil {
		return Account{}, err
	}
	key, err := xdr.MarshalBase64(xdr.LedgerKey{
		Type:    xdr.LedgerEntryTypeAccount,
		Account: &xdr.LedgerKeyAccount{AccountId: id},
	})
	if err != nil {
		return Account{}, errors.Wrap(err, "encode account key")
	}

	var resp ledgerEntriesResponse
	if err := c.rpc.CallContext(ctx, &resp, methodGetLedgerEntries, ledgerEntriesRequest{Keys: []string{key}}); err != nil {
		return Account{}, errors.Wrapf(err, "get account %s", address)
	}
	if len(resp.Entries) == 0 {
		return Account{}, errors.Wrap(ErrAccountNotFound, address)
	}

	var data xdr.LedgerEntryData
	if err := xdr.SafeUnmarshalBase64(resp.Entries[0].XDR, &data); err != nil {
		return Account{}, errors.Wrapf(err, "decode account %s", address)
	}
	if data.Type != xdr.LedgerEntryTypeAccount || data.Account == nil {
		return Account{}, errors.Errorf("ledger entry of %s is %s, not an account", address, data.Type)
	}
	return Account{Address: address, Sequence: int64(data.Account.SeqNum)}, nil
}

type transactionRequest struct {
	Transaction string `json:"transaction"`
}

type simulateResponse struct {
	Error           string `json:"error,omitempty"`
	TransactionData string `json:"transactionData"`
	MinResourceFee  string `json:"minResourceFee"`
	LatestLedger    uint32 `json:"latestLedger"`
	Results         []struct {
		XDR  string   `json:"xdr"`
		Auth []string `json:"auth"`
	} `json:"results"`
}

func (c *RPCClient) Simulate(ctx context.Context, tx *Transaction) (*Simulation, error) {
	env, err := tx.XDR()
	if err != nil {
		return nil, errors.Wrapf(err, "build %s", tx.Operation.Function)
	}
	encoded, err := xdr.MarshalBase64(env)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", tx.Operation.Function)
	}

	var resp simulateResponse
	if err := c.rpc.CallContext(ctx, &resp, methodSimulate, transactionRequest{Transaction: encoded}); err != nil {
		return nil, errors.Wrapf(err, "simulate %s", tx.Operation.Function)
	}

	sim := &Simulation{Error: resp.Error, LatestLedger: resp.LatestLedger}
	if sim.Error != "" {
		return sim, nil
	}

	if resp.MinResourceFee != "" {
		fee, err := strconv.ParseInt(resp.MinResourceFee, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parse resource fee of %s", tx.Operation.Function)
		}
		sim.Resources.MinResourceFee = fee
	}
	sim.Resources.TransactionData = resp.TransactionData

	sim.ReturnValue = typedvalue.Void{}
	if len(resp.Results) > 0 {
		ret, err := typedvalue.UnmarshalBase64(resp.Results[0].XDR)
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s result", tx.Operation.Function)
		}
		sim.ReturnValue = ret
		sim.Resources.Auth = resp.Results[0].Auth
	}

	c.logger.Debug("simulated transaction",
		"function", tx.Operation.Function,
		"minResourceFee", sim.Resources.MinResourceFee,
		"latestLedger", resp.LatestLedger)
	return sim, nil
}

// Prepare assembles locally: the simulation carries everything needed.
func (c *RPCClient) Prepare(_ context.Context, tx *Transaction, sim *Simulation) (*Transaction, error) {
	if sim == nil {
		return nil, errors.New("prepare without simulation")
	}
	if sim.Error != "" {
		return nil, errors.Errorf("prepare from failed simulation: %s", sim.Error)
	}
	if sim.Resources.TransactionData == "" {
		return nil, errors.New("prepare: simulation returned no transaction data")
	}
	return Assemble(tx, sim), nil
}

type sendResponse struct {
	Hash           string       `json:"hash"`
	Status         SubmitStatus `json:"status"`
	ErrorResultXDR string       `json:"errorResultXdr,omitempty"`
	LatestLedger   uint32       `json:"latestLedger"`
}

func (c *RPCClient) Submit(ctx context.Context, env SignedEnvelope) (*SubmitResult, error) {
	req := transactionRequest{Transaction: base64.StdEncoding.EncodeToString(env.Envelope)}

	var resp sendResponse
	if err := c.rpc.CallContext(ctx, &resp, methodSendTransaction, req); err != nil {
		return nil, errors.Wrap(err, "send transaction")
	}

	res := &SubmitResult{Hash: resp.Hash, Status: resp.Status, LatestLedger: resp.LatestLedger}
	if resp.ErrorResultXDR != "" {
		res.Error = resultCode(resp.ErrorResultXDR)
	}
	if res.Hash == "" {
		res.Hash = env.Hash
	}
	return res, nil
}

// resultCode renders a TransactionResult by its code, for example "txBadSeq".
// Undecodable results are returned as they are.
func resultCode(encoded string) string {
	var result xdr.TransactionResult
	if err := xdr.SafeUnmarshalBase64(encoded, &result); err != nil {
		return encoded
	}
	code := strings.TrimPrefix(result.Result.Code.String(), "TransactionResultCode")
	r, size := utf8.DecodeRuneInString(code)
	return string(unicode.ToLower(r)) + code[size:]
}

type latestLedgerResponse struct {
	ID              string `json:"id"`
	ProtocolVersion uint32 `json:"protocolVersion"`
	Sequence        uint32 `json:"sequence"`
}

func (c *RPCClient) LatestLedger(ctx context.Context) (uint32, error) {
	var resp latestLedgerResponse
	if err := c.rpc.CallContext(ctx, &resp, methodLatestLedger); err != nil {
		return 0, errors.Wrap(err, "get latest ledger")
	}
	return resp.Sequence, nil
}
