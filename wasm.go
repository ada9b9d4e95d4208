package wasmhost

// PageSize is the size of a WASM linear memory page in bytes.
const PageSize = 65536

// MaxPages is the largest page count whose byte size still fits in 32 bits.
// A 65536-page memory would be exactly 2^32 bytes, which Size cannot report.
const MaxPages = 65535

// Memory is a bounds-checked view of a WASM linear memory.
// All multi-byte values are little-endian. An access that would touch bytes
// outside [0, Size()) fails and leaves the memory unchanged.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
	// Size returns the current size in bytes. It never exceeds 2^32-1.
	Size() uint32
}

// GrowableMemory is a Memory that can be extended by whole pages.
type GrowableMemory interface {
	Memory
	// Grow adds deltaPages pages and returns the previous size in pages.
	Grow(deltaPages uint32) (uint32, error)
}

// Allocator allocates memory in WASM linear memory
type Allocator interface {
	Alloc(size uint32) (uint32, error)
	Free(ptr uint32) error
}
