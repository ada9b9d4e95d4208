package memory

import (
	"math"
	"math/bits"

	wasmhost "github.com/wippyai/wasm-host"
	"github.com/wippyai/wasm-host/errors"
)

const (
	headerSize   = 8
	minBlockSize = 8
	numOrders    = 23

	// MaxAllocation is the largest single request the allocator serves.
	MaxAllocation = minBlockSize << (numOrders - 1)

	occupiedFlag = uint64(1) << 32
	nilLink      = math.MaxUint32
)

var _ wasmhost.Allocator = (*Allocator)(nil)

// Allocator is a freeing-bump allocator living inside a linear memory.
// Allocator is not safe for concurrent use.
type Allocator struct {
	mem     wasmhost.GrowableMemory
	tracker *Tracker
	heads   [numOrders]uint32
	bump    uint32
}

// NewAllocator creates an allocator whose heap starts at heapBase.
func NewAllocator(mem wasmhost.GrowableMemory, heapBase uint32) *Allocator {
	a := &Allocator{
		mem:     mem,
		tracker: NewTracker(mem),
		bump:    alignUp(heapBase),
	}
	for i := range a.heads {
		a.heads[i] = nilLink
	}
	return a
}

// Alloc returns a pointer to at least size bytes.
func (a *Allocator) Alloc(size uint32) (uint32, error) {
	if _, err := a.tracker.Observe(); err != nil {
		return 0, err
	}
	if size > MaxAllocation {
		return 0, errors.AllocationTooLarge(errors.PhaseMemory, uint64(size), MaxAllocation)
	}

	order := orderOf(size)
	hdr := a.heads[order]
	if hdr != nilLink {
		link, err := a.mem.ReadU64(hdr)
		if err != nil {
			return 0, err
		}
		if link&occupiedFlag != 0 {
			return 0, errors.Other(errors.PhaseMemory, "free list points at an occupied block", nil)
		}
		a.heads[order] = uint32(link)
	} else {
		var err error
		hdr, err = a.bumpAlloc(headerSize+blockSize(order), size)
		if err != nil {
			return 0, err
		}
	}

	if err := a.mem.WriteU64(hdr, occupiedFlag|uint64(order)); err != nil {
		return 0, err
	}
	return hdr + headerSize, nil
}

// Free returns a block obtained from Alloc to its free list.
func (a *Allocator) Free(ptr uint32) error {
	if _, err := a.tracker.Observe(); err != nil {
		return err
	}
	if ptr < headerSize {
		return errors.Other(errors.PhaseMemory, "invalid pointer for deallocation", nil)
	}
	hdr := ptr - headerSize
	header, err := a.mem.ReadU64(hdr)
	if err != nil {
		return err
	}
	if header&occupiedFlag == 0 {
		return errors.Other(errors.PhaseMemory, "the allocation points to an empty header", nil)
	}
	order := uint32(header)
	if order >= numOrders {
		return errors.Other(errors.PhaseMemory, "invalid order in block header", nil)
	}
	if err := a.mem.WriteU64(hdr, uint64(a.heads[order])); err != nil {
		return err
	}
	a.heads[order] = hdr
	return nil
}

func (a *Allocator) bumpAlloc(n, requested uint32) (uint32, error) {
	end := uint64(a.bump) + uint64(n)
	if end > math.MaxUint32 {
		return 0, errors.OutOfSpace(errors.PhaseMemory, requested, nil)
	}
	if size := uint64(a.mem.Size()); end > size {
		pages := (end - size + wasmhost.PageSize - 1) / wasmhost.PageSize
		if _, err := a.mem.Grow(uint32(pages)); err != nil {
			return 0, errors.OutOfSpace(errors.PhaseMemory, requested, err)
		}
		if _, err := a.tracker.Observe(); err != nil {
			return 0, err
		}
	}
	ptr := a.bump
	a.bump = uint32(end)
	return ptr, nil
}

// orderOf returns the smallest size class holding size bytes.
func orderOf(size uint32) uint32 {
	if size < minBlockSize {
		size = minBlockSize
	}
	return uint32(bits.Len32(size-1)) - 3
}

func blockSize(order uint32) uint32 {
	return minBlockSize << order
}

func alignUp(p uint32) uint32 {
	return (p + 7) &^ 7
}
