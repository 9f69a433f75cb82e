package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geotrust-match/matchnode/pkg/contract"
	"github.com/geotrust-match/matchnode/pkg/policy"
	"github.com/geotrust-match/matchnode/pkg/typedvalue"
)

func TestParseArg(t *testing.T) {
	tcs := []struct {
		raw  string
		want any
	}{
		{raw: "12", want: uint32(12)},
		{raw: "true", want: true},
		{raw: "hello", want: "hello"},
		{raw: "u32:7", want: typedvalue.U32(7)},
		{raw: "i32:-7", want: typedvalue.I32(-7)},
		{raw: "u64:18446744073709551615", want: typedvalue.U64(18446744073709551615)},
		{raw: "i64:-9", want: typedvalue.I64(-9)},
		{raw: "bool:false", want: typedvalue.Bool(false)},
		{raw: "str:12", want: typedvalue.String("12")},
		{raw: "sym:Waiting", want: typedvalue.Symbol("Waiting")},
		{raw: "bytes:0x0102", want: typedvalue.Bytes{1, 2}},
		{raw: "void:", want: typedvalue.Void{}},
		{raw: "note:a:b", want: "note:a:b"},
		{raw: "addr:" + testContractID, want: typedvalue.MustParseAddress(testContractID)},
	}

	for _, tc := range tcs {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := parseArg(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseArgErrors(t *testing.T) {
	for _, raw := range []string{"u32:-1", "u32:4294967296", "bool:maybe", "bytes:zz", "addr:GABC"} {
		t.Run(raw, func(t *testing.T) {
			_, err := parseArg(raw)
			require.Error(t, err)
			assert.Contains(t, err.Error(), raw)
		})
	}
}

func TestParseInputs(t *testing.T) {
	inputs, err := parseInputs("42, 7,,9")
	require.NoError(t, err)
	assert.Equal(t, []uint32{42, 7, 9}, inputs)

	_, err = parseInputs("42,x")
	assert.Error(t, err)
}

func TestRenderSessions(t *testing.T) {
	cell := uint32(42)
	country := uint32(840)
	var buf bytes.Buffer
	renderSessions(&buf, []contract.Session{{
		ID:        12,
		State:     contract.SessionWaiting,
		Player1:   "GAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAWHF",
		P1CellID:  &cell,
		P1Country: &country,
	}})

	out := buf.String()
	assert.Contains(t, out, "Waiting")
	assert.Contains(t, out, "GAAAAA…AWHF")
	assert.Contains(t, out, "42 / -")
	assert.Contains(t, out, "840 "+policy.Name(840))

	buf.Reset()
	renderSessions(&buf, nil)
	assert.Equal(t, "no open sessions\n", buf.String())
}

func TestRenderPolicy(t *testing.T) {
	var buf bytes.Buffer
	renderPolicy(&buf, policy.New(false, 840), []string{"US", "FR", "nowhere"})

	out := buf.String()
	assert.Contains(t, out, "default allow all: false (allow-list)")
	assert.Contains(t, out, "840")
	assert.Contains(t, out, "unknown")

	buf.Reset()
	renderPolicy(&buf, policy.New(true, 276), []string{"deu", "nowhere"})
	rows := map[string]string{}
	for _, line := range strings.Split(buf.String(), "\n") {
		for _, input := range []string{"deu", "nowhere"} {
			if strings.Contains(line, input) {
				rows[input] = line
			}
		}
	}
	assert.Contains(t, rows["deu"], "DE Germany")
	assert.Contains(t, rows["deu"], "false")
	assert.Contains(t, rows["nowhere"], "true", "unknown input follows the allow-all default")
}

func TestDescribeKeepsFault(t *testing.T) {
	fault := &contract.Fault{Kind: contract.CountryNotAllowed, Function: "join_session", Reason: "country 250 is not allowed"}
	err := describe(fmt.Errorf("join: %w", fault))

	assert.Equal(t, contract.Result{Outcome: contract.OutcomeFault, Fault: fault}.Description(), err.Error())
	assert.Equal(t, contract.CountryNotAllowed, contract.FaultKindOf(err))

	plain := errors.New("bad flag")
	assert.Equal(t, plain, describe(plain))
}

func TestExitCode(t *testing.T) {
	fault := func(kind contract.FaultKind) error {
		return &contract.Fault{Kind: kind}
	}
	assert.Equal(t, 1, exitCode(errors.New("bad flag")))
	assert.Equal(t, 2, exitCode(fault(contract.SimulationRejected)))
	assert.Equal(t, 2, exitCode(describe(fault(contract.CountryNotAllowed))))
	assert.Equal(t, 3, exitCode(fault(contract.AccountUnavailable)))
	assert.Equal(t, 4, exitCode(fault(contract.SignerUnavailable)))
}

func TestRenderResult(t *testing.T) {
	var buf bytes.Buffer
	renderResult(&buf, contract.Result{
		Function: "create_session",
		Mode:     contract.Write,
		Outcome:  contract.OutcomeFault,
		Fault:    &contract.Fault{Kind: contract.SimulationRejected, Reason: "HostError: Session not found"},
	})
	assert.Contains(t, buf.String(), "The contract rejected the call: HostError: Session not found")

	buf.Reset()
	renderResult(&buf, contract.Result{Function: "create_session", Mode: contract.Write, Outcome: contract.OutcomeDeclined})
	assert.Contains(t, buf.String(), "declined by signer")
}
