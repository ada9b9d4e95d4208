package value

import (
	"fmt"
	"math"
	"strconv"

	"github.com/wippyai/wasm-host/errors"
)

// Boxed is the 64-bit slot a host callback receives and returns.
type Boxed int64

func BoxI32(v int32) Boxed { return Boxed(int64(v)) }
func BoxI64(v int64) Boxed { return Boxed(v) }
func BoxF32(v float32) Boxed { return Boxed(uint64(math.Float32bits(v))) }
func BoxF64(v float64) Boxed { return Boxed(math.Float64bits(v)) }
func (b Boxed) I32() int32 { return int32(b) }
func (b Boxed) I64() int64 { return int64(b) }
func (b Boxed) F32() float32 { return math.Float32frombits(uint32(b)) }
func (b Boxed) F64() float64 { return math.Float64frombits(uint64(b)) }
func (b Boxed) Uint32() uint32 { return uint32(b) }

// Box converts a typed value into its boxed slot.
func Box(v Value) Boxed {
	if v.Type == I32 {
		return BoxI32(v.I32())
	}
	return Boxed(v.bits)
}

// Pack checks args against params and boxes them.
func Pack(params []ValueType, args []Value) ([]Boxed, error) {
	if len(args) != len(params) {
		return nil, errors.ArityMismatch(errors.PhaseMarshal, nil, "arguments", len(params), len(args))
	}
	out := make([]Boxed, len(args))
	for i, arg := range args {
		if arg.Type != params[i] {
			return nil, errors.TypeMismatch(errors.PhaseMarshal, []string{argName(i)},
				params[i].String(), arg.Type.String())
		}
		out[i] = Box(arg)
	}
	return out, nil
}

// Unpack interprets boxed results by their declared types. A 32-bit slot
// must be a zero or sign extension of its low half.
func Unpack(results []ValueType, boxed []Boxed) ([]Value, error) {
	if len(boxed) != len(results) {
		return nil, errors.ArityMismatch(errors.PhaseMarshal, nil, "results", len(results), len(boxed))
	}
	out := make([]Value, len(boxed))
	for i, b := range boxed {
		t := results[i]
		if !t.Valid() {
			return nil, errors.New(errors.PhaseMarshal, errors.KindOther).
				Path(resultName(i)).
				Detail("unknown value type %d", uint8(t)).
				Build()
		}
		if t.Is32() && !fits32(b) {
			return nil, errors.Overflow(errors.PhaseMarshal, []string{resultName(i)},
				fmt.Sprintf("%#x", uint64(b)), t.String())
		}
		out[i] = FromBits(t, uint64(b))
	}
	return out, nil
}

func fits32(b Boxed) bool {
	return uint64(b)>>32 == 0 || int64(int32(b)) == int64(b)
}

func argName(i int) string { return "arg" + strconv.Itoa(i) }
func resultName(i int) string { return "result" + strconv.Itoa(i) }
