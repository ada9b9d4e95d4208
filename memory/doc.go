// Package memory provides bounds-checked accessors for WASM linear memory.
//
// Two implementations of wasmhost.GrowableMemory are provided:
//
//	lin, err := memory.NewLinear(1, nil)     // standalone Go byte buffer
//	mem := memory.Wrap(instance.Memory())    // wazero-owned memory
//
// Every accessor computes its byte range with overflow-checked 32-bit
// arithmetic before touching the buffer, so an offset near 2^32 never wraps
// to a small address and a failed write leaves memory unchanged.
//
// # Allocator
//
// Allocator is a freeing-bump allocator for host-managed heaps inside a
// linear memory. Blocks are rounded up to power-of-two size classes and each
// carries an 8-byte little-endian header. Freed blocks are kept on per-class
// free lists and reused before the bump pointer advances.
//
// # Shrink detection
//
// Tracker remembers the largest size it has seen. Linear memory can only
// grow, so a smaller observation means the host handed over the wrong memory.
package memory
