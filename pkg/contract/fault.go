package contract

import (
	"errors"
	"fmt"
	"strings"
)

// FaultKind classifies why a call failed.
type FaultKind string

const (
	// AccountUnavailable: the source account could not be fetched after retries.
	AccountUnavailable FaultKind = "AccountUnavailable"
	// SimulationRejected: the contract or host rejected the dry run.
	SimulationRejected FaultKind = "SimulationRejected"
	// WireFormatMismatch: a value on the wire used a format this client does
	// not understand. Read-only callers may treat it as no data.
	WireFormatMismatch FaultKind = "WireFormatMismatch"
	// UserDeclined: the signer refused. Calls report it as OutcomeDeclined,
	// never as a Fault; the kind labels metrics and logs.
	UserDeclined FaultKind = "UserDeclined"
	// SubmissionRejected: the ledger refused the signed transaction.
	SubmissionRejected FaultKind = "SubmissionRejected"
	// SignerUnavailable: the signer failed for a reason other than a refusal.
	SignerUnavailable FaultKind = "SignerUnavailable"
	// CountryNotAllowed: the contract's country policy excludes the caller, so
	// the call was refused before it was built.
	CountryNotAllowed FaultKind = "CountryNotAllowed"
)

// wireMismatchMarkers are substrings of decoder errors that indicate a format
// version skew between this client and the contract or RPC gateway.
var wireMismatchMarkers = []string{"unexpected discriminant", "bad union switch"}

// IsWireFormatMismatch reports whether msg carries a wire format mismatch marker.
func IsWireFormatMismatch(msg string) bool {
	for _, m := range wireMismatchMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Fault is a failed contract call.
type Fault struct {
	Kind     FaultKind
	Function string
	Stage    Stage
	// Reason is the ledger's or the signer's explanation, verbatim.
	Reason string
	Err    error
}

func newFault(kind FaultKind, function string, stage Stage, reason string, err error) *Fault {
	return &Fault{Kind: kind, Function: function, Stage: stage, Reason: reason, Err: err}
}

func (f *Fault) Error() string {
	msg := fmt.Sprintf("%s: %s at %s", f.Function, f.Kind, f.Stage)
	if f.Reason != "" {
		msg += ": " + f.Reason
	}
	return msg
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Is matches another *Fault by kind, so errors.Is(err, &Fault{Kind: k}) works.
func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	return ok && t.Kind == f.Kind
}

// FaultKindOf returns the kind of the first Fault in err's chain, or "".
func FaultKindOf(err error) FaultKind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}
