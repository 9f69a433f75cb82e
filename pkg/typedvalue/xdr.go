package typedvalue

import (
	"errors"
	"fmt"

	"github.com/stellar/go/xdr"

	"github.com/geotrust-match/matchnode/pkg/strkey"
)

// ErrUnexpectedDiscriminant is returned when a wire value carries a type tag
// this package does not know. It usually means the peer speaks a newer format.
var ErrUnexpectedDiscriminant = errors.New("unexpected discriminant")

// ToXDR converts v to its ledger representation. A nil v is Void.
func ToXDR(v Value) (xdr.ScVal, error) {
	switch x := v.(type) {
	case nil, Void:
		return xdr.ScVal{Type: xdr.ScValTypeScvVoid}, nil
	case Bool:
		b := bool(x)
		return xdr.ScVal{Type: xdr.ScValTypeScvBool, B: &b}, nil
	case U32:
		n := xdr.Uint32(x)
		return xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &n}, nil
	case I32:
		n := xdr.Int32(x)
		return xdr.ScVal{Type: xdr.ScValTypeScvI32, I32: &n}, nil
	case U64:
		n := xdr.Uint64(x)
		return xdr.ScVal{Type: xdr.ScValTypeScvU64, U64: &n}, nil
	case I64:
		n := xdr.Int64(x)
		return xdr.ScVal{Type: xdr.ScValTypeScvI64, I64: &n}, nil
	case U128:
		p := xdr.UInt128Parts{Hi: xdr.Uint64(x.Hi), Lo: xdr.Uint64(x.Lo)}
		return xdr.ScVal{Type: xdr.ScValTypeScvU128, U128: &p}, nil
	case I128:
		p := xdr.Int128Parts{Hi: xdr.Int64(x.Hi), Lo: xdr.Uint64(x.Lo)}
		return xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: &p}, nil
	case String:
		s := xdr.ScString(x)
		return xdr.ScVal{Type: xdr.ScValTypeScvString, Str: &s}, nil
	case Symbol:
		s := xdr.ScSymbol(x)
		return xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &s}, nil
	case Bytes:
		b := xdr.ScBytes(x)
		return xdr.ScVal{Type: xdr.ScValTypeScvBytes, Bytes: &b}, nil
	case Address:
		a, err := AddressToXDR(x)
		if err != nil {
			return xdr.ScVal{}, err
		}
		return xdr.ScVal{Type: xdr.ScValTypeScvAddress, Address: &a}, nil
	case Vec:
		vec := make(xdr.ScVec, len(x))
		for i, elem := range x {
			sc, err := ToXDR(elem)
			if err != nil {
				return xdr.ScVal{}, fmt.Errorf("vec[%d]: %w", i, err)
			}
			vec[i] = sc
		}
		pv := &vec
		return xdr.ScVal{Type: xdr.ScValTypeScvVec, Vec: &pv}, nil
	case Map:
		m := make(xdr.ScMap, len(x))
		for i, e := range x {
			key, err := ToXDR(e.Key)
			if err != nil {
				return xdr.ScVal{}, fmt.Errorf("map key %d: %w", i, err)
			}
			val, err := ToXDR(e.Val)
			if err != nil {
				return xdr.ScVal{}, fmt.Errorf("map value %d: %w", i, err)
			}
			m[i] = xdr.ScMapEntry{Key: key, Val: val}
		}
		pm := &m
		return xdr.ScVal{Type: xdr.ScValTypeScvMap, Map: &pm}, nil
	}
	return xdr.ScVal{}, fmt.Errorf("%w: %T", ErrUnsupported, v)
}

// FromXDR converts a ledger value. Types outside the Value set fail with
// ErrUnexpectedDiscriminant.
func FromXDR(sc xdr.ScVal) (Value, error) {
	switch sc.Type {
	case xdr.ScValTypeScvVoid:
		return Void{}, nil
	case xdr.ScValTypeScvBool:
		if sc.B != nil {
			return Bool(*sc.B), nil
		}
	case xdr.ScValTypeScvU32:
		if sc.U32 != nil {
			return U32(*sc.U32), nil
		}
	case xdr.ScValTypeScvI32:
		if sc.I32 != nil {
			return I32(*sc.I32), nil
		}
	case xdr.ScValTypeScvU64:
		if sc.U64 != nil {
			return U64(*sc.U64), nil
		}
	case xdr.ScValTypeScvI64:
		if sc.I64 != nil {
			return I64(*sc.I64), nil
		}
	case xdr.ScValTypeScvU128:
		if sc.U128 != nil {
			return U128{Hi: uint64(sc.U128.Hi), Lo: uint64(sc.U128.Lo)}, nil
		}
	case xdr.ScValTypeScvI128:
		if sc.I128 != nil {
			return I128{Hi: int64(sc.I128.Hi), Lo: uint64(sc.I128.Lo)}, nil
		}
	case xdr.ScValTypeScvString:
		if sc.Str != nil {
			return String(*sc.Str), nil
		}
	case xdr.ScValTypeScvSymbol:
		if sc.Sym != nil {
			return Symbol(*sc.Sym), nil
		}
	case xdr.ScValTypeScvBytes:
		if sc.Bytes != nil {
			return Bytes(*sc.Bytes), nil
		}
	case xdr.ScValTypeScvAddress:
		if sc.Address != nil {
			return AddressFromXDR(*sc.Address), nil
		}
	case xdr.ScValTypeScvVec:
		if sc.Vec == nil || *sc.Vec == nil {
			return Vec{}, nil
		}
		in := **sc.Vec
		vec := make(Vec, len(in))
		for i, elem := range in {
			v, err := FromXDR(elem)
			if err != nil {
				return nil, fmt.Errorf("vec[%d]: %w", i, err)
			}
			vec[i] = v
		}
		return vec, nil
	case xdr.ScValTypeScvMap:
		if sc.Map == nil || *sc.Map == nil {
			return Map{}, nil
		}
		in := **sc.Map
		m := make(Map, len(in))
		for i, e := range in {
			key, err := FromXDR(e.Key)
			if err != nil {
				return nil, fmt.Errorf("map key %d: %w", i, err)
			}
			val, err := FromXDR(e.Val)
			if err != nil {
				return nil, fmt.Errorf("map value %d: %w", i, err)
			}
			m[i] = MapEntry{Key: key, Val: val}
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedDiscriminant, sc.Type)
	}
	return nil, fmt.Errorf("decode %s: missing body", sc.Type)
}

// AddressToXDR converts an account or contract address. An address known only
// by its raw bytes is converted if an address can be recovered from them.
func AddressToXDR(a Address) (xdr.ScAddress, error) {
	if len(a.Key) != strkey.KeyLen {
		s, ok := scanAddress(a.Raw)
		if !ok {
			return xdr.ScAddress{}, fmt.Errorf("%w: no key", ErrNotAddress)
		}
		a = MustParseAddress(s)
	}

	var key [strkey.KeyLen]byte
	copy(key[:], a.Key)
	switch a.Class {
	case strkey.ClassAccount:
		pk := xdr.Uint256(key)
		account := xdr.AccountId{Type: xdr.PublicKeyTypePublicKeyTypeEd25519, Ed25519: &pk}
		return xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeAccount, AccountId: &account}, nil
	case strkey.ClassContract:
		id := xdr.Hash(key)
		return xdr.ScAddress{Type: xdr.ScAddressTypeScAddressTypeContract, ContractId: &id}, nil
	}
	return xdr.ScAddress{}, fmt.Errorf("%w: %s key", ErrNotAddress, a.Class)
}

// AddressFromXDR converts a ledger address. Address kinds other than accounts
// and contracts keep their encoded form in Raw.
func AddressFromXDR(a xdr.ScAddress) Address {
	switch a.Type {
	case xdr.ScAddressTypeScAddressTypeAccount:
		if a.AccountId != nil && a.AccountId.Ed25519 != nil {
			key := *a.AccountId.Ed25519
			return Address{Class: strkey.ClassAccount, Key: key[:]}
		}
	case xdr.ScAddressTypeScAddressTypeContract:
		if a.ContractId != nil {
			key := *a.ContractId
			return Address{Class: strkey.ClassContract, Key: key[:]}
		}
	}
	raw, _ := a.MarshalBinary()
	return Address{Raw: raw}
}

// MarshalBase64 renders v as base64 XDR, the form used in RPC payloads.
func MarshalBase64(v Value) (string, error) {
	sc, err := ToXDR(v)
	if err != nil {
		return "", err
	}
	return xdr.MarshalBase64(sc)
}

// UnmarshalBase64 parses base64 XDR. Bodies that do not decode as a known
// value type fail with ErrUnexpectedDiscriminant.
func UnmarshalBase64(s string) (Value, error) {
	var sc xdr.ScVal
	if err := xdr.SafeUnmarshalBase64(s, &sc); err != nil {
		return nil, fmt.Errorf("decode value: %w: %v", ErrUnexpectedDiscriminant, err)
	}
	return FromXDR(sc)
}
