package typedvalue

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/geotrust-match/matchnode/pkg/strkey"
)

// SessionStates are the unit variants of the session state enum.
var SessionStates = []string{"Waiting", "Active", "Ended"}

// Decoder converts wire values to Go values.
type Decoder struct {
	variants []string
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithEnumVariants sets the unit enum variants a Decoder unwraps. A Vec holding
// a single String or Symbol equal to one of names, ignoring case, decodes to
// that name instead of a one-element slice.
func WithEnumVariants(names ...string) DecoderOption {
	return func(d *Decoder) { d.variants = names }
}

func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var defaultDecoder = NewDecoder(WithEnumVariants(SessionStates...))

// Decode converts v with a Decoder that unwraps the session state variants.
func Decode(v Value) any {
	return defaultDecoder.Decode(v)
}

// Decode converts v to a plain Go value. It never panics; an address that
// cannot be rendered decodes to nil.
func (d *Decoder) Decode(v Value) any {
	switch x := v.(type) {
	case nil, Void:
		return nil
	case Bool:
		return bool(x)
	case U32:
		return int64(x)
	case I32:
		return int64(x)
	case U64:
		return strconv.FormatUint(uint64(x), 10)
	case I64:
		return strconv.FormatInt(int64(x), 10)
	case U128:
		return x.parts()
	case I128:
		return x.parts()
	case String:
		return string(x)
	case Symbol:
		return string(x)
	case Bytes:
		return []byte(x)
	case Address:
		if s, ok := addressText(x); ok {
			return s
		}
		return nil
	case Vec:
		if name, ok := d.variant(x); ok {
			return name
		}
		out := make([]any, len(x))
		for i, elem := range x {
			out[i] = d.Decode(elem)
		}
		return out
	case Map:
		rec := make(Record, 0, len(x))
		for _, e := range x {
			rec = append(rec, Field{Name: d.keyName(e.Key), Value: d.Decode(e.Val)})
		}
		return rec
	}
	return nil
}

func (d *Decoder) variant(v Vec) (string, bool) {
	if len(v) != 1 {
		return "", false
	}
	var s string
	switch x := v[0].(type) {
	case Symbol:
		s = string(x)
	case String:
		s = string(x)
	default:
		return "", false
	}
	for _, name := range d.variants {
		if strings.EqualFold(name, s) {
			return name, true
		}
	}
	return "", false
}

func (d *Decoder) keyName(k Value) string {
	if s, ok := k.(Symbol); ok {
		return string(s)
	}
	switch x := d.Decode(k).(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return fmt.Sprintf("%x", x)
	default:
		return fmt.Sprint(x)
	}
}

// DecodeOptionalAddress decodes a value where the contract returns an
// Option<Address>: Void, an Address, or a one-element Vec holding an Address.
// It reports false when no address is present or it cannot be rendered.
// Use it only at call sites that expect an optional address.
func DecodeOptionalAddress(v Value) (string, bool) {
	switch x := v.(type) {
	case Address:
		return addressText(x)
	case Vec:
		if len(x) == 1 {
			if a, ok := x[0].(Address); ok {
				return addressText(a)
			}
		}
	case String:
		if _, err := ParseAddress(string(x)); err == nil {
			return string(x), true
		}
	}
	return "", false
}

// addressText renders a from its class and key, falling back to an address
// embedded as text in the raw bytes.
func addressText(a Address) (string, bool) {
	if len(a.Key) == strkey.KeyLen && a.Class.IsPublic() {
		if s, err := strkey.Encode(a.Class, a.Key); err == nil {
			return s, true
		}
	}
	return scanAddress(a.Raw)
}

func scanAddress(raw []byte) (string, bool) {
	for start := 0; start+strkey.EncodedLen <= len(raw); start++ {
		if raw[start] != 'G' && raw[start] != 'C' {
			continue
		}
		candidate := raw[start : start+strkey.EncodedLen]
		if !isBase32(candidate) {
			continue
		}
		if _, err := ParseAddress(string(candidate)); err == nil {
			return string(candidate), true
		}
	}
	return "", false
}

func isBase32(b []byte) bool {
	for _, c := range b {
		if (c < 'A' || c > 'Z') && (c < '2' || c > '7') {
			return false
		}
	}
	return true
}
