package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/geotrust-match/matchnode/pkg/typedvalue"
)

// parseArg converts a command line argument to a call argument. A "type:"
// prefix selects the value type. Without one, integers become u32, true and
// false become bool and any other text is left to the codec.
func parseArg(raw string) (any, error) {
	kind, text, found := strings.Cut(raw, ":")
	if !found {
		return parseUntyped(raw), nil
	}

	switch kind {
	case "u32":
		n, err := strconv.ParseUint(text, 10, 32)
		return typedvalue.U32(n), wrapArgErr(raw, err)
	case "i32":
		n, err := strconv.ParseInt(text, 10, 32)
		return typedvalue.I32(n), wrapArgErr(raw, err)
	case "u64":
		n, err := strconv.ParseUint(text, 10, 64)
		return typedvalue.U64(n), wrapArgErr(raw, err)
	case "i64":
		n, err := strconv.ParseInt(text, 10, 64)
		return typedvalue.I64(n), wrapArgErr(raw, err)
	case "bool":
		b, err := strconv.ParseBool(text)
		return typedvalue.Bool(b), wrapArgErr(raw, err)
	case "str":
		return typedvalue.String(text), nil
	case "sym":
		return typedvalue.Symbol(text), nil
	case "bytes":
		b, err := hexutil.Decode(text)
		return typedvalue.Bytes(b), wrapArgErr(raw, err)
	case "addr":
		a, err := typedvalue.ParseAddress(text)
		return a, wrapArgErr(raw, err)
	case "void":
		return typedvalue.Void{}, nil
	}
	// Not a known prefix, e.g. "a:b" as plain text.
	return parseUntyped(raw), nil
}

func parseUntyped(raw string) any {
	if n, err := strconv.ParseUint(raw, 10, 32); err == nil {
		return uint32(n)
	}
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	return raw
}

func wrapArgErr(raw string, err error) error {
	if err != nil {
		return fmt.Errorf("invalid argument '%s': %w", raw, err)
	}
	return nil
}

// parseInputs parses a comma separated list of u32 values.
func parseInputs(text string) ([]uint32, error) {
	var out []uint32
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid public input '%s': %w", part, err)
		}
		out = append(out, uint32(n))
	}
	return out, nil
}
