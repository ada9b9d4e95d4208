package memory

import "github.com/wippyai/wasm-host/errors"

// Sizer reports the current size of a memory in bytes.
type Sizer interface {
	Size() uint32
}

// Tracker detects a memory that got smaller between observations.
type Tracker struct {
	mem  Sizer
	high uint32
}

// NewTracker starts tracking mem at its current size.
func NewTracker(mem Sizer) *Tracker {
	return &Tracker{mem: mem, high: mem.Size()}
}

// Observe returns the current size, or KindMemoryShrinked if it is below the
// largest size seen so far.
func (t *Tracker) Observe() (uint32, error) {
	size := t.mem.Size()
	if size < t.high {
		return size, errors.MemoryShrinked(errors.PhaseMemory, t.high, size)
	}
	t.high = size
	return size, nil
}
