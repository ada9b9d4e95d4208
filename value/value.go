package value

import (
	"math"
	"strconv"

	"github.com/wippyai/wasm-host/errors"
)

// Value is a typed WASM scalar. The bits use wazero's stack encoding:
// 32-bit types occupy the low half and the high half is zero.
type Value struct {
	Type ValueType
	bits uint64
}

func Int32(v int32) Value { return Value{Type: I32, bits: uint64(uint32(v))} }
func Int64(v int64) Value { return Value{Type: I64, bits: uint64(v)} }
func Float32(v float32) Value { return Value{Type: F32, bits: uint64(math.Float32bits(v))} }
func Float64(v float64) Value { return Value{Type: F64, bits: math.Float64bits(v)} }

// FromBits builds a value from its stack encoding. The high half of a 32-bit
// type is discarded.
func FromBits(t ValueType, bits uint64) Value {
	if t.Is32() {
		bits = uint64(uint32(bits))
	}
	return Value{Type: t, bits: bits}
}

func (v Value) I32() int32 { return int32(v.bits) }
func (v Value) I64() int64 { return int64(v.bits) }
func (v Value) F32() float32 { return math.Float32frombits(uint32(v.bits)) }
func (v Value) F64() float64 { return math.Float64frombits(v.bits) }

// Bits returns the stack encoding of v.
func (v Value) Bits() uint64 { return v.bits }

// Equal compares type and bit pattern, so a NaN equals an identical NaN.
func (v Value) Equal(o Value) bool {
	return v.Type == o.Type && v.bits == o.bits
}

func (v Value) String() string {
	switch v.Type {
	case I32:
		return strconv.FormatInt(int64(v.I32()), 10)
	case I64:
		return strconv.FormatInt(v.I64(), 10)
	case F32:
		return strconv.FormatFloat(float64(v.F32()), 'g', -1, 32)
	case F64:
		return strconv.FormatFloat(v.F64(), 'g', -1, 64)
	default:
		return "<invalid>"
	}
}

// ParseValue parses s as a value of type t. Integers accept a base prefix
// and the unsigned range of their width.
func ParseValue(t ValueType, s string) (Value, error) {
	switch t {
	case I32:
		if n, err := strconv.ParseInt(s, 0, 32); err == nil {
			return Int32(int32(n)), nil
		}
		n, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return Value{}, parseError(t, s, err)
		}
		return Int32(int32(uint32(n))), nil
	case I64:
		if n, err := strconv.ParseInt(s, 0, 64); err == nil {
			return Int64(n), nil
		}
		n, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return Value{}, parseError(t, s, err)
		}
		return Int64(int64(n)), nil
	case F32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Value{}, parseError(t, s, err)
		}
		return Float32(float32(f)), nil
	case F64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, parseError(t, s, err)
		}
		return Float64(f), nil
	}
	return Value{}, errors.New(errors.PhaseMarshal, errors.KindOther).
		Detail("unknown value type %d", uint8(t)).
		Build()
}

func parseError(t ValueType, s string, cause error) error {
	return errors.New(errors.PhaseMarshal, errors.KindInvalidInput).
		Type(t.String()).
		Value(s).
		Cause(cause).
		Detail("cannot parse %q", s).
		Build()
}

// FromStack decodes wazero stack slots into values of the given types.
func FromStack(types []ValueType, stack []uint64) []Value {
	out := make([]Value, len(types))
	for i, t := range types {
		out[i] = FromBits(t, stack[i])
	}
	return out
}

// ToStack writes values into wazero stack slots.
func ToStack(values []Value, stack []uint64) {
	for i, v := range values {
		stack[i] = v.bits
	}
}
