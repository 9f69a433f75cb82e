// Package strkey converts 32-byte ledger keys to and from their 56-character
// textual form. It narrows github.com/stellar/go/strkey to the key classes
// this node handles.
package strkey

import (
	"errors"
	"fmt"

	stellarkey "github.com/stellar/go/strkey"
)

// Class is the version byte identifying what kind of key an address holds.
type Class byte

const (
	ClassAccount  = Class(stellarkey.VersionByteAccountID) // 'G'
	ClassContract = Class(stellarkey.VersionByteContract)  // 'C'
	ClassSeed     = Class(stellarkey.VersionByteSeed)      // 'S', an account's secret seed
)

// EncodedLen is the length of every encoded address.
const EncodedLen = 56

// KeyLen is the length of the raw key behind an address.
const KeyLen = 32

var (
	ErrInvalidLength = errors.New("invalid address length")
	ErrUnknownClass  = errors.New("unknown address class")
)

func (c Class) String() string {
	switch c {
	case ClassAccount:
		return "account"
	case ClassContract:
		return "contract"
	case ClassSeed:
		return "seed"
	default:
		return fmt.Sprintf("class(%d)", byte(c))
	}
}

func (c Class) valid() bool {
	return c == ClassAccount || c == ClassContract || c == ClassSeed
}

// IsPublic reports whether c names something that may appear on the wire:
// an account or a contract.
func (c Class) IsPublic() bool {
	return c == ClassAccount || c == ClassContract
}

// Encode renders key as an address of class c.
func Encode(c Class, key []byte) (string, error) {
	if !c.valid() {
		return "", ErrUnknownClass
	}
	if len(key) != KeyLen {
		return "", fmt.Errorf("%w: key is %d bytes", ErrInvalidLength, len(key))
	}
	return stellarkey.Encode(stellarkey.VersionByte(c), key)
}

// MustEncode is Encode for keys known to be valid.
func MustEncode(c Class, key []byte) string {
	s, err := Encode(c, key)
	if err != nil {
		panic(err)
	}
	return s
}

// Decode parses an address and returns its class and raw key.
func Decode(s string) (Class, []byte, error) {
	if len(s) != EncodedLen {
		return 0, nil, ErrInvalidLength
	}
	version, err := stellarkey.Version(s)
	if err != nil {
		return 0, nil, err
	}
	c := Class(version)
	if !c.valid() {
		return 0, nil, ErrUnknownClass
	}
	key, err := stellarkey.Decode(version, s)
	if err != nil {
		return 0, nil, err
	}
	return c, key, nil
}

// IsValid reports whether s decodes as an address of class c.
func IsValid(c Class, s string) bool {
	got, _, err := Decode(s)
	return err == nil && got == c
}
