package memory

import (
	"github.com/tetratelabs/wazero/api"

	wasmhost "github.com/wippyai/wasm-host"
	"github.com/wippyai/wasm-host/errors"
)

var _ wasmhost.GrowableMemory = (*Wrapper)(nil)

// Wrap adapts a wazero api.Memory. It returns nil for a nil memory.
func Wrap(mem api.Memory) *Wrapper {
	if mem == nil {
		return nil
	}
	return &Wrapper{Mem: mem}
}

// Wrapper adapts wazero api.Memory to wasmhost.GrowableMemory.
// Ranges are checked here before wazero is asked, so errors are uniform with Linear.
type Wrapper struct {
	Mem api.Memory
}

// Size returns the current size in bytes.
func (m *Wrapper) Size() uint32 {
	return m.Mem.Size()
}

// Grow extends the memory by deltaPages pages.
func (m *Wrapper) Grow(deltaPages uint32) (uint32, error) {
	prev, ok := m.Mem.Grow(deltaPages)
	if !ok {
		limit := uint64(wasmhost.MaxPages)
		if max, bounded := m.Mem.Definition().Max(); bounded {
			limit = uint64(max)
		}
		cur := uint64(m.Mem.Size() / wasmhost.PageSize)
		return uint32(cur), errors.AllocationTooLarge(errors.PhaseMemory, cur+uint64(deltaPages), limit)
	}
	return prev, nil
}

// Read returns a copy of length bytes at offset.
func (m *Wrapper) Read(offset uint32, length uint32) ([]byte, error) {
	if _, _, err := checkRange("read", offset, length, m.Mem.Size()); err != nil {
		return nil, err
	}
	data, ok := m.Mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseMemory, "read", offset, length, m.Mem.Size())
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write copies data to offset.
func (m *Wrapper) Write(offset uint32, data []byte) error {
	length := lengthOf(data)
	if _, _, err := checkRange("write", offset, length, m.Mem.Size()); err != nil {
		return err
	}
	if !m.Mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseMemory, "write", offset, length, m.Mem.Size())
	}
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (m *Wrapper) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.Mem.ReadByte(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, "read", offset, 1, m.Mem.Size())
	}
	return v, nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (m *Wrapper) ReadU16(offset uint32) (uint16, error) {
	if _, _, err := checkRange("read", offset, 2, m.Mem.Size()); err != nil {
		return 0, err
	}
	v, ok := m.Mem.ReadUint16Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, "read", offset, 2, m.Mem.Size())
	}
	return v, nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *Wrapper) ReadU32(offset uint32) (uint32, error) {
	if _, _, err := checkRange("read", offset, 4, m.Mem.Size()); err != nil {
		return 0, err
	}
	v, ok := m.Mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, "read", offset, 4, m.Mem.Size())
	}
	return v, nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Wrapper) ReadU64(offset uint32) (uint64, error) {
	if _, _, err := checkRange("read", offset, 8, m.Mem.Size()); err != nil {
		return 0, err
	}
	v, ok := m.Mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseMemory, "read", offset, 8, m.Mem.Size())
	}
	return v, nil
}

// WriteU8 writes an unsigned 8-bit value.
func (m *Wrapper) WriteU8(offset uint32, value uint8) error {
	if !m.Mem.WriteByte(offset, value) {
		return errors.OutOfBounds(errors.PhaseMemory, "write", offset, 1, m.Mem.Size())
	}
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (m *Wrapper) WriteU16(offset uint32, value uint16) error {
	if _, _, err := checkRange("write", offset, 2, m.Mem.Size()); err != nil {
		return err
	}
	if !m.Mem.WriteUint16Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseMemory, "write", offset, 2, m.Mem.Size())
	}
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *Wrapper) WriteU32(offset uint32, value uint32) error {
	if _, _, err := checkRange("write", offset, 4, m.Mem.Size()); err != nil {
		return err
	}
	if !m.Mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseMemory, "write", offset, 4, m.Mem.Size())
	}
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Wrapper) WriteU64(offset uint32, value uint64) error {
	if _, _, err := checkRange("write", offset, 8, m.Mem.Size()); err != nil {
		return err
	}
	if !m.Mem.WriteUint64Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseMemory, "write", offset, 8, m.Mem.Size())
	}
	return nil
}
