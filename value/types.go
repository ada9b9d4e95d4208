package value

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-host/errors"
)

// ValueType is a WASM scalar type. The numeric values are the wire tags used
// by import declarations.
type ValueType uint8

const (
	I32 ValueType = 1
	I64 ValueType = 2
	F32 ValueType = 3
	F64 ValueType = 4
)

func (t ValueType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	default:
		return fmt.Sprintf("ValueType(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the four scalar types.
func (t ValueType) Valid() bool {
	return t >= I32 && t <= F64
}

// Is32 reports whether t occupies a 32-bit slot.
func (t ValueType) Is32() bool {
	return t == I32 || t == F32
}

// FromTag converts a wire tag (1=i32, 2=i64, 3=f32, 4=f64).
func FromTag(tag int32) (ValueType, error) {
	t := ValueType(tag)
	if tag < 1 || tag > 4 {
		return 0, errors.New(errors.PhaseMarshal, errors.KindOther).
			Value(tag).
			Detail("unknown value type tag %d", tag).
			Build()
	}
	return t, nil
}

// Parse accepts a type name ("i32", "F64") or a decimal tag ("1".."4").
func Parse(s string) (ValueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "i32", "1":
		return I32, nil
	case "i64", "2":
		return I64, nil
	case "f32", "3":
		return F32, nil
	case "f64", "4":
		return F64, nil
	}
	return 0, errors.New(errors.PhaseMarshal, errors.KindOther).
		Value(s).
		Detail("unknown value type %q", s).
		Build()
}

// FromAPI converts a wazero value type.
func FromAPI(t api.ValueType) (ValueType, error) {
	switch t {
	case api.ValueTypeI32:
		return I32, nil
	case api.ValueTypeI64:
		return I64, nil
	case api.ValueTypeF32:
		return F32, nil
	case api.ValueTypeF64:
		return F64, nil
	}
	return 0, errors.Unsupported(errors.PhaseMarshal,
		fmt.Sprintf("value type %s", api.ValueTypeName(t)))
}

// API returns the wazero value type for t.
func (t ValueType) API() api.ValueType {
	switch t {
	case I64:
		return api.ValueTypeI64
	case F32:
		return api.ValueTypeF32
	case F64:
		return api.ValueTypeF64
	default:
		return api.ValueTypeI32
	}
}

// FromAPITypes converts a wazero signature.
func FromAPITypes(ts []api.ValueType) ([]ValueType, error) {
	out := make([]ValueType, len(ts))
	for i, t := range ts {
		vt, err := FromAPI(t)
		if err != nil {
			return nil, err
		}
		out[i] = vt
	}
	return out, nil
}

// APITypes converts a signature to wazero value types.
func APITypes(ts []ValueType) []api.ValueType {
	out := make([]api.ValueType, len(ts))
	for i, t := range ts {
		out[i] = t.API()
	}
	return out
}


// Signature renders a function signature like "(i32, i64) -> (f32)".
func Signature(params, results []ValueType) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, t := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.String())
	}
	b.WriteString(") -> (")
	for i, t := range results {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.String())
	}
	b.WriteByte(')')
	return b.String()
}
