package wasm

import (
	"github.com/tetratelabs/wazero/api"
)

// Reexport builds a module with no code of its own. It imports functions
// and at most one memory from other modules and exports them under new
// names, so a guest can import everything for one namespace from a single
// module named after that namespace.
type Reexport struct {
	funcs  []reexportFunc
	memory *reexportMemory
}

type reexportFunc struct {
	module     string
	name       string
	exportName string
	params     []api.ValueType
	results    []api.ValueType
}

type reexportMemory struct {
	module     string
	name       string
	exportName string
	limits     Limits
}

// NewReexport creates an empty re-export module builder.
func NewReexport() *Reexport {
	return &Reexport{}
}

// AddFunc imports module.name with the given signature and exports it as
// exportName.
func (r *Reexport) AddFunc(module, name, exportName string, params, results []api.ValueType) {
	r.funcs = append(r.funcs, reexportFunc{
		module:     module,
		name:       name,
		exportName: exportName,
		params:     params,
		results:    results,
	})
}

// SetMemory imports module.name as a memory and exports it as exportName.
// The limits must be satisfied by the imported memory.
func (r *Reexport) SetMemory(module, name, exportName string, l Limits) {
	r.memory = &reexportMemory{
		module:     module,
		name:       name,
		exportName: exportName,
		limits:     l,
	}
}

// Empty reports whether nothing has been added.
func (r *Reexport) Empty() bool {
	return len(r.funcs) == 0 && r.memory == nil
}

// Build generates the WASM module bytes.
func (r *Reexport) Build() []byte {
	wasm := append([]byte(nil), header...)

	var types []byte
	for _, f := range r.funcs {
		types = appendFuncType(types, f.params, f.results)
	}
	wasm = appendSection(wasm, sectionType, len(r.funcs), types)

	var imports []byte
	for i, f := range r.funcs {
		imports = appendName(imports, f.module)
		imports = appendName(imports, f.name)
		imports = append(imports, externFunc)
		imports = append(imports, EncodeULEB128(uint32(i))...)
	}
	numImports := len(r.funcs)
	if r.memory != nil {
		imports = appendName(imports, r.memory.module)
		imports = appendName(imports, r.memory.name)
		imports = append(imports, externMemory)
		imports = appendLimits(imports, r.memory.limits)
		numImports++
	}
	wasm = appendSection(wasm, sectionImport, numImports, imports)

	var exports []byte
	for i, f := range r.funcs {
		exports = appendName(exports, f.exportName)
		exports = append(exports, externFunc)
		exports = append(exports, EncodeULEB128(uint32(i))...)
	}
	if r.memory != nil {
		exports = appendName(exports, r.memory.exportName)
		exports = append(exports, externMemory, 0x00)
	}
	return appendSection(wasm, sectionExport, numImports, exports)
}
