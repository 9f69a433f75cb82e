package typedvalue

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/geotrust-match/matchnode/pkg/strkey"
)

// Type names the tag of a Value. The names are also the "type" field of the wire form.
type Type string

const (
	TypeBool    Type = "bool"
	TypeU32     Type = "u32"
	TypeI32     Type = "i32"
	TypeU64     Type = "u64"
	TypeI64     Type = "i64"
	TypeU128    Type = "u128"
	TypeI128    Type = "i128"
	TypeString  Type = "string"
	TypeSymbol  Type = "symbol"
	TypeBytes   Type = "bytes"
	TypeAddress Type = "address"
	TypeVoid    Type = "void"
	TypeVec     Type = "vec"
	TypeMap     Type = "map"
)

// Value is a tagged wire value. The set of implementations is closed.
type Value interface {
	Type() Type
	isValue()
}

type (
	Bool   bool
	U32    uint32
	I32    int32
	U64    uint64
	I64    int64
	String string
	Symbol string
	Bytes  []byte
	Void   struct{}
	Vec    []Value
	Map    []MapEntry
)

// U128 is an unsigned 128-bit integer split into halves.
type U128 struct {
	Hi uint64
	Lo uint64
}

// I128 is a signed 128-bit integer split into halves.
type I128 struct {
	Hi int64
	Lo uint64
}

// MapEntry is one key/value pair of a Map.
type MapEntry struct {
	Key Value
	Val Value
}

// Address identifies an account or a contract. Class and Key hold the
// structured form. Raw holds undecoded address bytes when the structured form
// was not available, for example from a peer speaking a newer format.
type Address struct {
	Class strkey.Class
	Key   []byte
	Raw   []byte
}

func (Bool) Type() Type    { return TypeBool }
func (U32) Type() Type     { return TypeU32 }
func (I32) Type() Type     { return TypeI32 }
func (U64) Type() Type     { return TypeU64 }
func (I64) Type() Type     { return TypeI64 }
func (U128) Type() Type    { return TypeU128 }
func (I128) Type() Type    { return TypeI128 }
func (String) Type() Type  { return TypeString }
func (Symbol) Type() Type  { return TypeSymbol }
func (Bytes) Type() Type   { return TypeBytes }
func (Address) Type() Type { return TypeAddress }
func (Void) Type() Type    { return TypeVoid }
func (Vec) Type() Type     { return TypeVec }
func (Map) Type() Type     { return TypeMap }

func (Bool) isValue()    {}
func (U32) isValue()     {}
func (I32) isValue()     {}
func (U64) isValue()     {}
func (I64) isValue()     {}
func (U128) isValue()    {}
func (I128) isValue()    {}
func (String) isValue()  {}
func (Symbol) isValue()  {}
func (Bytes) isValue()   {}
func (Address) isValue() {}
func (Void) isValue()    {}
func (Vec) isValue()     {}
func (Map) isValue()     {}

// ErrNotAddress is returned by ParseAddress for well-formed keys that are not
// accounts or contracts, such as secret seeds.
var ErrNotAddress = errors.New("not an account or contract address")

// ParseAddress parses a 56-character account or contract address.
func ParseAddress(s string) (Address, error) {
	class, key, err := strkey.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("parse address: %w", err)
	}
	if !class.IsPublic() {
		// Never echo the input: it may be a secret seed.
		return Address{}, fmt.Errorf("parse address: %w: %s key", ErrNotAddress, class)
	}
	return Address{Class: class, Key: key}, nil
}

// MustParseAddress is ParseAddress for constants.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String renders the address, or returns "" when it cannot be rendered.
func (a Address) String() string {
	s, _ := addressText(a)
	return s
}

// Get returns the value stored under the Symbol key name.
func (m Map) Get(name string) (Value, bool) {
	for _, e := range m {
		if k, ok := e.Key.(Symbol); ok && string(k) == name {
			return e.Val, true
		}
	}
	return nil, false
}

// Big returns the 128-bit value as a big.Int.
func (u U128) Big() *big.Int {
	v := new(big.Int).SetUint64(u.Hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(u.Lo))
}

// Big returns the 128-bit value as a big.Int.
func (i I128) Big() *big.Int {
	v := big.NewInt(i.Hi)
	v.Lsh(v, 64)
	return v.Add(v, new(big.Int).SetUint64(i.Lo))
}

// Parts is the decoded form of U128 and I128: each half as a decimal string.
type Parts struct {
	Hi string `json:"hi"`
	Lo string `json:"lo"`
}

func (u U128) parts() Parts {
	return Parts{Hi: strconv.FormatUint(u.Hi, 10), Lo: strconv.FormatUint(u.Lo, 10)}
}

func (i I128) parts() Parts {
	return Parts{Hi: strconv.FormatInt(i.Hi, 10), Lo: strconv.FormatUint(i.Lo, 10)}
}
