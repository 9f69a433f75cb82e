package contract

import (
	"github.com/geotrust-match/matchnode/pkg/typedvalue"
)

// Outcome tags a Result.
type Outcome int

const (
	// OutcomeOK: the call returned a value.
	OutcomeOK Outcome = iota
	// OutcomeAbsent: the call returned Void. Not an error.
	OutcomeAbsent
	// OutcomeDeclined: the signer refused. Not an error and not logged as one.
	OutcomeDeclined
	// OutcomeFault: the call failed; Result.Fault says why.
	OutcomeFault
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeAbsent:
		return "absent"
	case OutcomeDeclined:
		return "declined"
	case OutcomeFault:
		return "fault"
	default:
		return "unknown"
	}
}

// Result is the outcome of one contract call.
type Result struct {
	Function string
	Mode     Mode
	Outcome  Outcome
	// Value is the return value from simulation. For write calls it is the
	// value simulated before submission.
	Value typedvalue.Value
	Fault *Fault
	// Stage is the last stage the call reached.
	Stage Stage
	// CallID correlates log entries and spans of this call.
	CallID string

	// Write calls only.
	Hash      string
	Confirmed bool

	decoder *typedvalue.Decoder
}

// Err returns the fault, or nil for OK, Absent and Declined.
func (r Result) Err() error {
	if r.Outcome == OutcomeFault && r.Fault != nil {
		return r.Fault
	}
	return nil
}

// NoData reports whether a reader should render "nothing here": an absent
// value, or a read-only call that hit a wire format mismatch.
func (r Result) NoData() bool {
	switch r.Outcome {
	case OutcomeAbsent:
		return true
	case OutcomeFault:
		return r.Mode == ReadOnly && r.Fault != nil && r.Fault.Kind == WireFormatMismatch
	default:
		return false
	}
}

// Native decodes Value to a plain Go value. It is nil unless Outcome is OutcomeOK.
func (r Result) Native() any {
	if r.Outcome != OutcomeOK {
		return nil
	}
	if r.decoder == nil {
		return typedvalue.Decode(r.Value)
	}
	return r.decoder.Decode(r.Value)
}

// Description is the text a presentation layer shows for a failed call.
// It is empty for successful and declined calls.
func (r Result) Description() string {
	if r.Outcome != OutcomeFault || r.Fault == nil {
		return ""
	}
	switch r.Fault.Kind {
	case AccountUnavailable:
		return "Could not load your account from the network. Try again shortly."
	case SimulationRejected:
		if r.Fault.Reason != "" {
			return "The contract rejected the call: " + r.Fault.Reason
		}
		return "The contract rejected the call."
	case WireFormatMismatch:
		return "This client does not understand the contract's response format. Please update."
	case SignerUnavailable:
		return "The wallet could not sign the transaction."
	case CountryNotAllowed:
		return "Your country is not allowed to join sessions on this contract."
	case SubmissionRejected:
		if r.Fault.Reason != "" {
			return "The network rejected the transaction: " + r.Fault.Reason
		}
		return "The network rejected the transaction."
	default:
		return r.Fault.Error()
	}
}
