package wasm

// MemoryExport is the export name of the memory defined by MemoryModule.
const MemoryExport = "memory"

// MemoryModule returns a module that defines a single memory with the given
// limits and exports it as MemoryExport. A shared memory must have a maximum.
func MemoryModule(l Limits) []byte {
	wasm := append([]byte(nil), header...)
	wasm = appendSection(wasm, sectionMemory, 1, appendLimits(nil, l))

	exports := appendName(nil, MemoryExport)
	exports = append(exports, externMemory, 0x00)
	return appendSection(wasm, sectionExport, 1, exports)
}
