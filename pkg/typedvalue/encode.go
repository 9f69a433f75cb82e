package typedvalue

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/geotrust-match/matchnode/pkg/strkey"
)

// ErrUnsupported is returned for Go values with no wire counterpart.
var ErrUnsupported = errors.New("unsupported value")

// ErrOutOfRange is returned for numbers that do not fit a U32.
var ErrOutOfRange = errors.New("number out of u32 range")

// Valuer is implemented by Go types that know their own wire form.
type Valuer interface {
	Value() Map
}

// Encoder converts Go values to wire values.
type Encoder struct {
	onAddressFallback func(s string, err error)
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithAddressFallbackHook registers fn to be called when an address-shaped
// string fails to parse and is encoded as a String instead.
func WithAddressFallbackHook(fn func(s string, err error)) EncoderOption {
	return func(e *Encoder) { e.onAddressFallback = fn }
}

func NewEncoder(opts ...EncoderOption) *Encoder {
	e := &Encoder{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEncoder = NewEncoder()

// Encode converts v with the default Encoder.
func Encode(v any) (Value, error) {
	return defaultEncoder.Encode(v)
}

// EncodeAll encodes each argument in order.
func EncodeAll(args ...any) ([]Value, error) {
	return defaultEncoder.EncodeAll(args...)
}

// EncodeAll encodes each argument in order.
func (e *Encoder) EncodeAll(args ...any) ([]Value, error) {
	out := make([]Value, len(args))
	for i, arg := range args {
		v, err := e.Encode(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Encode converts v to a wire value. Rules apply in order:
//
//   - a Value is returned unchanged;
//   - integers and integral floats become U32;
//   - bools become Bool;
//   - 56-character strings starting with G or C become Address when they
//     parse, every other string becomes String;
//   - byte slices and byte arrays become Bytes;
//   - nil and nil pointers become Void;
//   - LocationProof and other Valuers become their Map;
//   - Records become a Map with Symbol keys;
//   - other slices and arrays become Vec.
func (e *Encoder) Encode(v any) (Value, error) {
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return Void{}, nil
	}

	switch x := v.(type) {
	case nil:
		return Void{}, nil
	case Value:
		return x, nil
	case Valuer:
		return x.Value(), nil
	case bool:
		return Bool(x), nil
	case string:
		return e.encodeString(x), nil
	case []byte:
		return Bytes(x), nil
	case Record:
		return e.encodeRecord(x)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return encodeNumber(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Void{}, nil
		}
		return e.Encode(rv.Elem().Interface())
	case reflect.Array, reflect.Slice:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Void{}, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			buf := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(buf), rv)
			return Bytes(buf), nil
		}
		vec := make(Vec, rv.Len())
		for i := range rv.Len() {
			elem, err := e.Encode(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			vec[i] = elem
		}
		return vec, nil
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.String:
		return e.encodeString(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return encodeNumber(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return encodeNumber(rv.Uint())
	}

	return nil, fmt.Errorf("%w: %T", ErrUnsupported, v)
}

func (e *Encoder) encodeString(s string) Value {
	if len(s) != strkey.EncodedLen || (s[0] != 'G' && s[0] != 'C') {
		return String(s)
	}
	addr, err := ParseAddress(s)
	if err != nil {
		if e.onAddressFallback != nil {
			e.onAddressFallback(s, err)
		}
		return String(s)
	}
	return addr
}

func (e *Encoder) encodeRecord(r Record) (Value, error) {
	m := make(Map, 0, len(r))
	for _, f := range r {
		val, err := e.Encode(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		m = append(m, MapEntry{Key: Symbol(f.Name), Val: val})
	}
	return m, nil
}

func encodeNumber(n any) (Value, error) {
	switch x := n.(type) {
	case int:
		return u32FromInt(int64(x))
	case int8:
		return u32FromInt(int64(x))
	case int16:
		return u32FromInt(int64(x))
	case int32:
		return u32FromInt(int64(x))
	case int64:
		return u32FromInt(x)
	case uint:
		return u32FromUint(uint64(x))
	case uint8:
		return U32(x), nil
	case uint16:
		return U32(x), nil
	case uint32:
		return U32(x), nil
	case uint64:
		return u32FromUint(x)
	case float32:
		return u32FromFloat(float64(x))
	case float64:
		return u32FromFloat(x)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupported, n)
}

func u32FromInt(n int64) (Value, error) {
	if n < 0 || n > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, n)
	}
	return U32(n), nil
}

func u32FromUint(n uint64) (Value, error) {
	if n > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, n)
	}
	return U32(n), nil
}

func u32FromFloat(f float64) (Value, error) {
	if f != math.Trunc(f) || f < 0 || f > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %v", ErrOutOfRange, f)
	}
	return U32(f), nil
}
