package contract

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/geotrust-match/matchnode/pkg/ledger"
	"github.com/geotrust-match/matchnode/pkg/log"
	"github.com/geotrust-match/matchnode/pkg/typedvalue"
)

// Stage is a step of the transaction lifecycle.
type Stage string

const (
	StageBuilt     Stage = "Built"
	StageSimulated Stage = "Simulated"
	StagePrepared  Stage = "Prepared"
	StageSigned    Stage = "Signed"
	StageSubmitted Stage = "Submitted"
	StageConfirmed Stage = "Confirmed"
	StageFailed    Stage = "Failed"
)

// stroopsPerXLM converts fees for logging.
var stroopsPerXLM = decimal.New(1, 7)

// call is the state of one invocation moving through the stages.
type call struct {
	inv      *Invoker
	function string
	mode     Mode
	logger   log.Logger
	result   Result
}

func (c *call) reach(stage Stage) {
	c.result.Stage = stage
	c.inv.metrics.RecordStage(string(stage))
	c.logger.Debug("stage reached", "stage", stage)
}

func (c *call) fail(kind FaultKind, stage Stage, reason string, err error) {
	c.result.Outcome = OutcomeFault
	c.result.Stage = StageFailed
	c.result.Fault = newFault(kind, c.function, stage, reason, err)
	c.inv.metrics.RecordStage(string(StageFailed))

	if kind == WireFormatMismatch && c.mode == ReadOnly {
		c.logger.Warn("wire format mismatch on read", "stage", stage, "reason", reason)
		return
	}
	c.logger.Error("contract call failed", "kind", kind, "stage", stage, "reason", reason)
}

func (c *call) succeed(value typedvalue.Value) {
	c.result.Value = value
	if _, ok := value.(typedvalue.Void); ok || value == nil {
		c.result.Outcome = OutcomeAbsent
		c.result.Value = typedvalue.Void{}
		return
	}
	c.result.Outcome = OutcomeOK
}

func (c *call) run(ctx context.Context, args []typedvalue.Value) {
	tx, ok := c.build(ctx, args)
	if !ok {
		return
	}
	sim, ok := c.simulate(ctx, tx)
	if !ok {
		return
	}

	if c.mode == ReadOnly {
		c.succeed(sim.ReturnValue)
		return
	}

	prepared, err := c.inv.client.Prepare(ctx, tx, sim)
	if err != nil {
		c.fail(SimulationRejected, StagePrepared, err.Error(), err)
		return
	}
	c.reach(StagePrepared)

	signed, ok := c.sign(ctx, prepared)
	if !ok {
		return
	}

	before, haveBefore := c.ledgerBefore(ctx)

	if !c.submit(ctx, signed) {
		return
	}

	if haveBefore {
		c.result.Confirmed = c.confirm(ctx, before)
	}
	if c.result.Confirmed {
		c.reach(StageConfirmed)
	}
	c.succeed(sim.ReturnValue)
}

// build fetches the source account right before use and builds the
// transaction with the next sequence number.
func (c *call) build(ctx context.Context, args []typedvalue.Value) (*ledger.Transaction, bool) {
	source := c.inv.cfg.Source
	if c.mode == Write {
		if c.inv.signer == nil {
			c.fail(SignerUnavailable, StageBuilt, "no signer configured", nil)
			return nil, false
		}
		source = c.inv.signer.Address()
	}

	tx := &ledger.Transaction{
		Source: source,
		Fee:    ledger.BaseFee,
		Operation: ledger.Operation{
			ContractID: c.inv.cfg.ContractID,
			Function:   c.function,
			Args:       args,
		},
	}

	if source != "" {
		var account ledger.Account
		err := c.inv.cfg.Retry.Do(ctx, c.inv.clock, func() error {
			acc, err := c.inv.client.GetAccount(ctx, source)
			if err != nil {
				return err
			}
			account = acc
			return nil
		}, func(err error, attempt int) {
			c.inv.metrics.RecordAccountRetry()
			c.logger.Debug("retrying account fetch", "attempt", attempt, "error", err)
		})
		if err != nil {
			c.fail(AccountUnavailable, StageBuilt, err.Error(), err)
			return nil, false
		}
		tx.Sequence = account.Sequence + 1
	} else {
		tx.Source = ledger.SimulationSource
	}

	c.reach(StageBuilt)
	return tx, true
}

func (c *call) simulate(ctx context.Context, tx *ledger.Transaction) (*ledger.Simulation, bool) {
	sim, err := c.inv.client.Simulate(ctx, tx)
	if err != nil {
		c.failSimulation(err.Error(), err)
		return nil, false
	}
	if sim.Error != "" {
		c.failSimulation(sim.Error, nil)
		return nil, false
	}

	c.reach(StageSimulated)
	fee := sim.Resources.MinResourceFee
	c.inv.metrics.RecordResourceFee(fee)
	c.logger.Debug("simulation succeeded",
		"minResourceFee", fee,
		"minResourceFeeXLM", decimal.NewFromInt(fee).Div(stroopsPerXLM).String(),
		"latestLedger", sim.LatestLedger)
	return sim, true
}

func (c *call) failSimulation(reason string, err error) {
	if IsWireFormatMismatch(reason) {
		c.fail(WireFormatMismatch, StageSimulated, reason, err)
		return
	}
	c.fail(SimulationRejected, StageSimulated, reason, err)
}

func (c *call) sign(ctx context.Context, tx *ledger.Transaction) (ledger.SignedEnvelope, bool) {
	envelope, err := tx.Envelope()
	if err != nil {
		c.fail(SignerUnavailable, StagePrepared, err.Error(), err)
		return ledger.SignedEnvelope{}, false
	}

	signed, err := c.inv.signer.SignEnvelope(ctx, envelope, c.inv.cfg.NetworkPassphrase)
	if err != nil {
		if isDeclined(err) {
			c.result.Outcome = OutcomeDeclined
			c.logger.Debug("signature declined")
			return ledger.SignedEnvelope{}, false
		}
		c.fail(SignerUnavailable, StageSigned, err.Error(), err)
		return ledger.SignedEnvelope{}, false
	}

	c.reach(StageSigned)
	c.logger.Debug("transaction signed", "fee", tx.Fee, "sequence", tx.Sequence)
	return signed, true
}

// ledgerBefore reads the latest ledger ahead of submission. Without it the
// confirmation wait is skipped.
func (c *call) ledgerBefore(ctx context.Context) (uint32, bool) {
	seq, err := c.inv.client.LatestLedger(ctx)
	if err != nil {
		c.logger.Warn("could not read latest ledger before submission", "error", err)
		return 0, false
	}
	return seq, true
}

func (c *call) submit(ctx context.Context, env ledger.SignedEnvelope) bool {
	res, err := c.inv.client.Submit(ctx, env)
	if err != nil {
		c.fail(SubmissionRejected, StageSubmitted, err.Error(), err)
		return false
	}

	c.result.Hash = res.Hash
	switch res.Status {
	case ledger.StatusError:
		c.fail(SubmissionRejected, StageSubmitted, res.Error, nil)
		return false
	case ledger.StatusTryAgainLater:
		c.fail(SubmissionRejected, StageSubmitted, string(res.Status), nil)
		return false
	}

	c.reach(StageSubmitted)
	c.logger.Info("transaction submitted", "hash", res.Hash, "status", res.Status)
	return true
}

// confirm polls the latest ledger until it passes before. Running out of
// time is not a failure: the transaction was accepted and may still land.
func (c *call) confirm(ctx context.Context, before uint32) bool {
	policy := c.inv.cfg.Confirm
	clk := c.inv.clock
	start := clk.Now()

	ticker := clk.Ticker(policy.Interval)
	defer ticker.Stop()
	deadline := clk.Timer(policy.Timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Warn("confirmation wait cancelled", "hash", c.result.Hash, "error", ctx.Err())
			c.inv.metrics.RecordConfirmation(clk.Now().Sub(start), false)
			return false
		case <-deadline.C:
			c.logger.Warn("ledger did not advance after submission, proceeding",
				"hash", c.result.Hash, "ledgerBefore", before, "waited", policy.Timeout)
			c.inv.metrics.RecordConfirmation(clk.Now().Sub(start), false)
			return false
		case <-ticker.C:
			seq, err := c.inv.client.LatestLedger(ctx)
			if err != nil {
				c.logger.Debug("latest ledger poll failed", "error", err)
				continue
			}
			if seq <= before {
				continue
			}

			if err := c.sleep(ctx, policy.Settle); err != nil {
				c.logger.Warn("confirmation settle interrupted", "error", err)
			}
			c.inv.metrics.RecordConfirmation(clk.Now().Sub(start), true)
			c.logger.Debug("ledger advanced", "ledgerBefore", before, "ledger", seq)
			return true
		}
	}
}

func (c *call) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := c.inv.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
