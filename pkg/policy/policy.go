// Package policy decides whether a country may take part in matching.
//
// A Policy is a default flag plus a set of ISO 3166-1 numeric codes. When the
// default is to allow everyone the set lists denied countries; otherwise it
// lists allowed ones. IsAllowed is the only place that reads the set.
package policy

import (
	"slices"
	"strconv"
	"strings"
)

// CodeSet is a set of ISO 3166-1 numeric country codes.
type CodeSet map[uint32]struct{}

func NewCodeSet(codes ...uint32) CodeSet {
	s := make(CodeSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

func (s CodeSet) Has(code uint32) bool {
	_, ok := s[code]
	return ok
}

func (s CodeSet) Add(code uint32) {
	s[code] = struct{}{}
}

// Sorted returns the codes in ascending order.
func (s CodeSet) Sorted() []uint32 {
	out := make([]uint32, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Policy is a country eligibility policy.
type Policy struct {
	DefaultAllowAll bool
	// Codes is a deny-list when DefaultAllowAll is set and an allow-list otherwise.
	Codes CodeSet
}

func New(defaultAllowAll bool, codes ...uint32) Policy {
	return Policy{DefaultAllowAll: defaultAllowAll, Codes: NewCodeSet(codes...)}
}

// Mode describes how Codes is read.
func (p Policy) Mode() string {
	if p.DefaultAllowAll {
		return "deny-list"
	}
	return "allow-list"
}

// IsAllowed reports whether code is eligible under p.
func IsAllowed(p Policy, code uint32) bool {
	if p.DefaultAllowAll {
		return !p.Codes.Has(code)
	}
	return p.Codes.Has(code)
}

// Resolve is IsAllowed for a code that may be unknown. A nil code falls back
// to the policy default.
func Resolve(p Policy, code *uint32) bool {
	if code == nil {
		return p.DefaultAllowAll
	}
	return IsAllowed(p, *code)
}

// ResolveText parses input with ParseCode and resolves the result.
func ResolveText(p Policy, input string) bool {
	if code, ok := ParseCode(input); ok {
		return IsAllowed(p, code)
	}
	return Resolve(p, nil)
}

// Filter returns the codes allowed under p, keeping their order.
func Filter(p Policy, codes []uint32) []uint32 {
	out := make([]uint32, 0, len(codes))
	for _, c := range codes {
		if IsAllowed(p, c) {
			out = append(out, c)
		}
	}
	return out
}

// ParseCode derives a numeric country code from a numeric code ("840",
// "036"), an alpha-2 or alpha-3 code ("US", "deu") or an English name.
func ParseCode(input string) (uint32, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		if n == 0 || n > 999 {
			return 0, false
		}
		return uint32(n), true
	}
	if c, ok := lookup(s); ok {
		return uint32(c), true
	}
	return 0, false
}
