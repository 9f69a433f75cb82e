package policy

import (
	"strings"

	"github.com/biter777/countries"
)

// lookup finds a country by alpha-2 code, alpha-3 code or English name.
func lookup(input string) (countries.CountryCode, bool) {
	c := countries.ByName(strings.TrimSpace(input))
	if c == countries.Unknown || !c.IsValid() {
		return countries.Unknown, false
	}
	return c, true
}

// Name returns the English short name of code, or "" when unknown.
func Name(code uint32) string {
	c := countries.ByNumeric(int(code))
	if c == countries.Unknown || !c.IsValid() {
		return ""
	}
	return c.String()
}

// Alpha2 returns the alpha-2 code of code, or "" when unknown.
func Alpha2(code uint32) string {
	c := countries.ByNumeric(int(code))
	if c == countries.Unknown || !c.IsValid() {
		return ""
	}
	return c.Alpha2()
}
