// Package contract invokes GeoTrust contract functions on the ledger.
//
// An Invoker encodes arguments, simulates the call and, for functions that
// change state, drives the transaction through preparation, signing,
// submission and confirmation. Every call yields a Result tagged with an
// Outcome; only OutcomeFault carries an error.
package contract

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/raulk/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/geotrust-match/matchnode/pkg/ledger"
	"github.com/geotrust-match/matchnode/pkg/log"
	"github.com/geotrust-match/matchnode/pkg/metrics"
	"github.com/geotrust-match/matchnode/pkg/sign"
	"github.com/geotrust-match/matchnode/pkg/typedvalue"
)

// Mode selects the pipeline a call goes through.
type Mode int

const (
	// Write calls are simulated, prepared, signed, submitted and confirmed.
	Write Mode = iota
	// ReadOnly calls are only simulated.
	ReadOnly
)

func (m Mode) String() string {
	if m == ReadOnly {
		return "read_only"
	}
	return "write"
}

// readOnlyFunctions are the contract functions that never change state.
var readOnlyFunctions = map[string]struct{}{
	"get_admin":              {},
	"get_game_hub":           {},
	"get_country_admin":      {},
	"get_country_allowed":    {},
	"get_country_policy":     {},
	"list_allowed_countries": {},
	"get_session":            {},
}

// ModeOf returns ReadOnly for known read-only functions and Write otherwise.
func ModeOf(function string) Mode {
	if _, ok := readOnlyFunctions[function]; ok {
		return ReadOnly
	}
	return Write
}

// ConfirmPolicy controls how inclusion of a submitted transaction is detected:
// the latest ledger sequence is polled every Interval until it passes the
// pre-submission value, then Settle is waited. After Timeout the call
// succeeds unconfirmed.
type ConfirmPolicy struct {
	Interval time.Duration
	Timeout  time.Duration
	Settle   time.Duration
}

var DefaultConfirmPolicy = ConfirmPolicy{Interval: time.Second, Timeout: 15 * time.Second, Settle: time.Second}

// Config identifies the contract and network an Invoker talks to.
type Config struct {
	ContractID        string
	NetworkPassphrase string
	// Source is the account read-only calls are simulated from. When empty
	// they are simulated without a source account. Write calls always use the
	// signer's account.
	Source  string
	Retry   RetryPolicy
	Confirm ConfirmPolicy
}

// Invoker calls functions of one contract.
type Invoker struct {
	cfg     Config
	client  ledger.Client
	signer  sign.Signer
	encoder *typedvalue.Encoder
	decoder *typedvalue.Decoder
	clock   clock.Clock
	logger  log.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures an Invoker.
type Option func(*Invoker)

func WithLogger(l log.Logger) Option {
	return func(i *Invoker) { i.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Invoker) { i.metrics = m }
}

// WithClock replaces the wall clock used for retries and confirmation polling.
func WithClock(c clock.Clock) Option {
	return func(i *Invoker) { i.clock = c }
}

func WithTracer(t trace.Tracer) Option {
	return func(i *Invoker) { i.tracer = t }
}

// WithDecoder replaces the decoder used by Result.Native.
func WithDecoder(d *typedvalue.Decoder) Option {
	return func(i *Invoker) { i.decoder = d }
}

// NewInvoker builds an Invoker. signer may be nil for a read-only invoker;
// write calls then fail with SignerUnavailable. Zero retry and confirm
// policies are replaced by the defaults.
func NewInvoker(client ledger.Client, signer sign.Signer, cfg Config, opts ...Option) *Invoker {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy
	}
	if cfg.Confirm == (ConfirmPolicy{}) {
		cfg.Confirm = DefaultConfirmPolicy
	}

	inv := &Invoker{
		cfg:     cfg,
		client:  client,
		signer:  signer,
		decoder: typedvalue.NewDecoder(typedvalue.WithEnumVariants(typedvalue.SessionStates...)),
		clock:   clock.New(),
		logger:  log.NewNoopLogger(),
		tracer:  otel.Tracer("github.com/geotrust-match/matchnode/pkg/contract"),
	}
	for _, opt := range opts {
		opt(inv)
	}

	inv.logger = inv.logger.WithName("invoker").WithKV("contract", cfg.ContractID)
	inv.encoder = typedvalue.NewEncoder(typedvalue.WithAddressFallbackHook(func(s string, err error) {
		inv.logger.Debug("address-shaped argument encoded as string", "value", s, "error", err)
	}))
	return inv
}

// ContractID returns the contract this invoker targets.
func (inv *Invoker) ContractID() string {
	return inv.cfg.ContractID
}

// Signer returns the signer write calls use, or nil.
func (inv *Invoker) Signer() sign.Signer {
	return inv.signer
}

// Invoke calls function with args in the mode given by ModeOf.
func (inv *Invoker) Invoke(ctx context.Context, function string, args ...any) Result {
	return inv.InvokeMode(ctx, ModeOf(function), function, args...)
}

// InvokeMode calls function with args in an explicit mode.
func (inv *Invoker) InvokeMode(ctx context.Context, mode Mode, function string, args ...any) Result {
	callID := uuid.NewString()
	ctx, span := inv.tracer.Start(ctx, "contract."+function, trace.WithAttributes(
		attribute.String("contract.id", inv.cfg.ContractID),
		attribute.String("contract.function", function),
		attribute.String("contract.mode", mode.String()),
		attribute.String("call.id", callID),
	))
	defer span.End()

	lg := inv.logger.WithKV("function", function).WithKV("callId", callID)
	ctx = log.SetContextLogger(ctx, lg)

	c := &call{
		inv:      inv,
		function: function,
		mode:     mode,
		logger:   log.FromContext(ctx),
		result:   Result{Function: function, Mode: mode, CallID: callID, decoder: inv.decoder},
	}

	encoded, err := inv.encoder.EncodeAll(args...)
	if err != nil {
		// Arguments the contract cannot accept would be rejected by simulation.
		c.fail(SimulationRejected, StageBuilt, err.Error(), err)
	} else {
		c.run(ctx, encoded)
	}

	res := c.result
	inv.metrics.RecordCall(function, mode.String(), res.Outcome.String())
	span.SetAttributes(attribute.String("contract.outcome", res.Outcome.String()))
	if res.Outcome == OutcomeFault {
		inv.metrics.RecordFault(string(res.Fault.Kind))
		span.SetStatus(codes.Error, res.Fault.Error())
	}
	return res
}

// refuse fails function without touching the ledger or the signer.
func (inv *Invoker) refuse(function string, kind FaultKind, reason string) Result {
	res := Result{
		Function: function,
		Mode:     ModeOf(function),
		Outcome:  OutcomeFault,
		Stage:    StageFailed,
		CallID:   uuid.NewString(),
		Fault:    newFault(kind, function, StageBuilt, reason, nil),
		decoder:  inv.decoder,
	}
	inv.metrics.RecordCall(function, res.Mode.String(), res.Outcome.String())
	inv.metrics.RecordFault(string(kind))
	inv.logger.Warn("call refused", "function", function, "callId", res.CallID, "kind", kind, "reason", reason)
	return res
}

func isDeclined(err error) bool {
	return errors.Is(err, sign.ErrDeclined)
}
