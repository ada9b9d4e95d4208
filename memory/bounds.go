package memory

import (
	"math"
	"math/bits"

	"github.com/wippyai/wasm-host/errors"
)

// heapRange returns [offset, offset+length) if it lies within a memory of
// size bytes. The addition is checked so it cannot wrap past 2^32.
func heapRange(offset, length, size uint32) (start, end uint32, ok bool) {
	end, carry := bits.Add32(offset, length, 0)
	if carry != 0 || end > size {
		return 0, 0, false
	}
	return offset, end, true
}

func checkRange(op string, offset, length, size uint32) (uint32, uint32, error) {
	start, end, ok := heapRange(offset, length, size)
	if !ok {
		return 0, 0, errors.OutOfBounds(errors.PhaseMemory, op, offset, length, size)
	}
	return start, end, nil
}

// sizeOf converts a buffer length to the 32-bit size of a linear memory.
func sizeOf(n int) uint32 {
	if uint64(n) > math.MaxUint32 {
		panic("size of Wasm linear memory is <2^32")
	}
	return uint32(n)
}

// lengthOf clamps a slice length to 32 bits. A clamped length can never pass
// heapRange, because no memory is 2^32 bytes long.
func lengthOf(data []byte) uint32 {
	if uint64(len(data)) > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(len(data))
}
