// Package typedvalue converts between Go values and the tagged values
// exchanged with ledger contracts.
//
// Every wire value is one of the closed set of types implementing Value:
// Bool, U32, I32, U64, I64, U128, I128, String, Symbol, Bytes, Address, Void,
// Vec and Map. Encode maps loosely typed Go values onto that set; Decode maps
// wire values back to plain Go values:
//
//	Bool      bool
//	Void      nil
//	U32, I32  int64
//	U64, I64  decimal string
//	U128/I128 Parts{Hi, Lo} of decimal strings
//	String    string
//	Symbol    string
//	Bytes     []byte
//	Address   56-character string, or nil when it cannot be rendered
//	Vec       []any, or the bare variant name for a unit enum variant
//	Map       Record, ordered
//
// On the wire values are XDR ScVals, base64 encoded inside RPC payloads. See
// ToXDR and FromXDR.
package typedvalue
