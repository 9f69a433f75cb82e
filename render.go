package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/geotrust-match/matchnode/pkg/contract"
	"github.com/geotrust-match/matchnode/pkg/policy"
)

func renderSessions(w io.Writer, sessions []contract.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "no open sessions") // nolint:errcheck
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "State", "Player 1", "Player 2", "Cells", "Countries", "Proofs", "Created"})
	t.AppendSeparator()
	for _, s := range sessions {
		t.AppendRow(table.Row{
			s.ID,
			s.State,
			shortAddress(s.Player1),
			shortAddress(s.Player2),
			optionalPair(s.P1CellID, s.P2CellID, strconv.FormatUint),
			optionalPair(s.P1Country, s.P2Country, countryLabel),
			fmt.Sprintf("%t / %t", s.P1HasProof, s.P2HasProof),
			s.CreatedLedger,
		})
	}
	t.Render()
}

func renderPolicy(w io.Writer, p policy.Policy, inputs []string) {
	fmt.Fprintf(w, "default allow all: %t (%s)\n", p.DefaultAllowAll, p.Mode()) // nolint:errcheck

	t := table.NewWriter()
	t.SetOutputMirror(w)
	if len(inputs) == 0 {
		t.AppendHeader(table.Row{"Code", "Country"})
		for _, code := range p.Codes.Sorted() {
			t.AppendRow(table.Row{code, countryName(code)})
		}
		t.Render()
		return
	}

	t.AppendHeader(table.Row{"Input", "Code", "Country", "Allowed"})
	for _, input := range inputs {
		allowed := policy.ResolveText(p, input)
		code, ok := policy.ParseCode(input)
		if !ok {
			t.AppendRow(table.Row{input, "?", "unknown", allowed})
			continue
		}
		t.AppendRow(table.Row{input, code, countryName(code), allowed})
	}
	t.Render()
}

func renderResult(w io.Writer, res contract.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendRow(table.Row{"Function", res.Function})
	t.AppendRow(table.Row{"Mode", res.Mode})
	t.AppendRow(table.Row{"Outcome", res.Outcome})
	t.AppendRow(table.Row{"Stage", res.Stage})

	switch res.Outcome {
	case contract.OutcomeOK:
		t.AppendRow(table.Row{"Value", nativeJSON(res.Native())})
	case contract.OutcomeDeclined:
		t.AppendRow(table.Row{"Note", "declined by signer"})
	case contract.OutcomeFault:
		t.AppendRow(table.Row{"Error", res.Description()})
	}
	if res.Mode == contract.Write && res.Hash != "" {
		t.AppendRow(table.Row{"Hash", res.Hash})
		t.AppendRow(table.Row{"Confirmed", res.Confirmed})
	}
	t.Render()
}

func renderMatch(w io.Writer, m contract.MatchResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Matched", "Winner"})
	t.AppendRow(table.Row{m.Matched, m.Winner})
	t.Render()
}

func nativeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

// countryName is "DE Germany" for a known code and "" otherwise.
func countryName(code uint32) string {
	if name := policy.Name(code); name != "" {
		return policy.Alpha2(code) + " " + name
	}
	return ""
}

func countryLabel(code uint64, _ int) string {
	if name := policy.Name(uint32(code)); name != "" {
		return fmt.Sprintf("%d %s", code, name)
	}
	return strconv.FormatUint(code, 10)
}

func optionalPair(a, b *uint32, format func(uint64, int) string) string {
	text := func(v *uint32) string {
		if v == nil {
			return "-"
		}
		return format(uint64(*v), 10)
	}
	return text(a) + " / " + text(b)
}
