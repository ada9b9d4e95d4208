package memory

import (
	"encoding/binary"

	wasmhost "github.com/wippyai/wasm-host"
	"github.com/wippyai/wasm-host/errors"
)

var _ wasmhost.GrowableMemory = (*Linear)(nil)

// Linear is a linear memory backed by a Go byte slice.
// Linear is not safe for concurrent use.
type Linear struct {
	data     []byte
	maxPages uint32
}

// NewLinear creates a zeroed memory of minPages pages. A nil maxPages lets
// the memory grow up to wasmhost.MaxPages.
func NewLinear(minPages uint32, maxPages *uint32) (*Linear, error) {
	limit := uint32(wasmhost.MaxPages)
	if maxPages != nil {
		if *maxPages > wasmhost.MaxPages {
			return nil, errors.AllocationTooLarge(errors.PhaseMemory, uint64(*maxPages), wasmhost.MaxPages)
		}
		limit = *maxPages
	}
	if minPages > limit {
		return nil, errors.Other(errors.PhaseMemory, "minimum pages exceed maximum pages", nil)
	}
	return &Linear{
		data:     make([]byte, int(minPages)*wasmhost.PageSize),
		maxPages: limit,
	}, nil
}

// Bytes returns the underlying buffer. It is invalidated by Grow.
func (l *Linear) Bytes() []byte {
	return l.data
}

// MaxPages returns the page count the memory may grow to.
func (l *Linear) MaxPages() uint32 {
	return l.maxPages
}

// Size returns the current size in bytes.
func (l *Linear) Size() uint32 {
	return sizeOf(len(l.data))
}

// Grow extends the memory by deltaPages zeroed pages.
func (l *Linear) Grow(deltaPages uint32) (uint32, error) {
	prev := l.Size() / wasmhost.PageSize
	next := uint64(prev) + uint64(deltaPages)
	if next > uint64(l.maxPages) {
		return prev, errors.AllocationTooLarge(errors.PhaseMemory, next, uint64(l.maxPages))
	}
	if deltaPages > 0 {
		l.data = append(l.data, make([]byte, int(deltaPages)*wasmhost.PageSize)...)
	}
	return prev, nil
}

// Read returns a copy of length bytes at offset.
func (l *Linear) Read(offset uint32, length uint32) ([]byte, error) {
	start, end, err := checkRange("read", offset, length, l.Size())
	if err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, l.data[start:end])
	return out, nil
}

// Write copies data to offset.
func (l *Linear) Write(offset uint32, data []byte) error {
	start, end, err := checkRange("write", offset, lengthOf(data), l.Size())
	if err != nil {
		return err
	}
	copy(l.data[start:end], data)
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (l *Linear) ReadU8(offset uint32) (uint8, error) {
	start, _, err := checkRange("read", offset, 1, l.Size())
	if err != nil {
		return 0, err
	}
	return l.data[start], nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (l *Linear) ReadU16(offset uint32) (uint16, error) {
	start, end, err := checkRange("read", offset, 2, l.Size())
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(l.data[start:end]), nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (l *Linear) ReadU32(offset uint32) (uint32, error) {
	start, end, err := checkRange("read", offset, 4, l.Size())
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(l.data[start:end]), nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (l *Linear) ReadU64(offset uint32) (uint64, error) {
	start, end, err := checkRange("read", offset, 8, l.Size())
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(l.data[start:end]), nil
}

// WriteU8 writes an unsigned 8-bit value.
func (l *Linear) WriteU8(offset uint32, value uint8) error {
	start, _, err := checkRange("write", offset, 1, l.Size())
	if err != nil {
		return err
	}
	l.data[start] = value
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (l *Linear) WriteU16(offset uint32, value uint16) error {
	start, end, err := checkRange("write", offset, 2, l.Size())
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(l.data[start:end], value)
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (l *Linear) WriteU32(offset uint32, value uint32) error {
	start, end, err := checkRange("write", offset, 4, l.Size())
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(l.data[start:end], value)
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (l *Linear) WriteU64(offset uint32, value uint64) error {
	start, end, err := checkRange("write", offset, 8, l.Size())
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(l.data[start:end], value)
	return nil
}
