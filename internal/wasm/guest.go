package wasm

import (
	"encoding/binary"
	"math"

	"github.com/tetratelabs/wazero/api"
)

// Instruction opcodes used by guest function bodies.
const (
	OpCall       byte = 0x10
	OpLocalGet   byte = 0x20
	OpI32Load    byte = 0x28
	OpI64Load    byte = 0x29
	OpI64Store   byte = 0x37
	OpMemorySize byte = 0x3f
	OpI32Const   byte = 0x41
	OpI64Const   byte = 0x42
	OpF64Const   byte = 0x44
)

// Guest builds a guest module that imports host functions and an optional
// memory and exports functions with hand-written bodies. Imports must be
// added before functions so function indices stay stable.
type Guest struct {
	imports []guestImport
	funcs   []guestFunc
	memory  *guestMemory
	globals []guestGlobal
	types   []byte
	ntypes  uint32
}

type guestImport struct {
	module  string
	name    string
	typeIdx uint32
}

type guestFunc struct {
	exportName string
	typeIdx    uint32
	body       []byte
}

type guestGlobal struct {
	exportName string
	init       []byte
	typ        api.ValueType
	mutable    bool
}

type guestMemory struct {
	module string
	name   string
	limits Limits
	export string
}

// NewGuest creates an empty guest module builder.
func NewGuest() *Guest {
	return &Guest{}
}

func (g *Guest) addType(params, results []api.ValueType) uint32 {
	g.types = appendFuncType(g.types, params, results)
	g.ntypes++
	return g.ntypes - 1
}

// ImportFunc declares a function import and returns its function index.
func (g *Guest) ImportFunc(module, name string, params, results []api.ValueType) uint32 {
	if len(g.funcs) > 0 {
		panic("wasm: ImportFunc after Func")
	}
	g.imports = append(g.imports, guestImport{
		module:  module,
		name:    name,
		typeIdx: g.addType(params, results),
	})
	return uint32(len(g.imports) - 1)
}

// ImportMemory declares the guest's memory as an import.
func (g *Guest) ImportMemory(module, name string, l Limits) {
	g.memory = &guestMemory{module: module, name: name, limits: l}
}

// ExportMemory exports the imported memory under name.
func (g *Guest) ExportMemory(name string) {
	if g.memory != nil {
		g.memory.export = name
	}
}

// Global adds an exported global. init is a single constant instruction
// such as I32Const(7).
func (g *Guest) Global(exportName string, t api.ValueType, mutable bool, init []byte) {
	g.globals = append(g.globals, guestGlobal{
		exportName: exportName,
		init:       init,
		typ:        t,
		mutable:    mutable,
	})
}

// Func adds an exported function. body holds instructions only; the empty
// locals vector and the final end opcode are added here. It returns the
// function index.
func (g *Guest) Func(exportName string, params, results []api.ValueType, body ...[]byte) uint32 {
	var code []byte
	code = append(code, 0x00)
	for _, b := range body {
		code = append(code, b...)
	}
	code = append(code, 0x0b)
	g.funcs = append(g.funcs, guestFunc{
		exportName: exportName,
		typeIdx:    g.addType(params, results),
		body:       code,
	})
	return uint32(len(g.imports) + len(g.funcs) - 1)
}

// Build generates the WASM module bytes.
func (g *Guest) Build() []byte {
	wasm := append([]byte(nil), header...)
	wasm = appendSection(wasm, sectionType, int(g.ntypes), g.types)

	var imports []byte
	for _, imp := range g.imports {
		imports = appendName(imports, imp.module)
		imports = appendName(imports, imp.name)
		imports = append(imports, externFunc)
		imports = append(imports, EncodeULEB128(imp.typeIdx)...)
	}
	numImports := len(g.imports)
	if g.memory != nil {
		imports = appendName(imports, g.memory.module)
		imports = appendName(imports, g.memory.name)
		imports = append(imports, externMemory)
		imports = appendLimits(imports, g.memory.limits)
		numImports++
	}
	wasm = appendSection(wasm, sectionImport, numImports, imports)

	var funcs []byte
	for _, f := range g.funcs {
		funcs = append(funcs, EncodeULEB128(f.typeIdx)...)
	}
	wasm = appendSection(wasm, sectionFunction, len(g.funcs), funcs)

	var globals []byte
	for _, gl := range g.globals {
		var mut byte
		if gl.mutable {
			mut = 0x01
		}
		globals = append(globals, ValType(gl.typ), mut)
		globals = append(globals, gl.init...)
		globals = append(globals, 0x0b)
	}
	wasm = appendSection(wasm, sectionGlobal, len(g.globals), globals)

	var exports []byte
	numExports := 0
	for i, f := range g.funcs {
		exports = appendName(exports, f.exportName)
		exports = append(exports, externFunc)
		exports = append(exports, EncodeULEB128(uint32(len(g.imports)+i))...)
		numExports++
	}
	for i, gl := range g.globals {
		exports = appendName(exports, gl.exportName)
		exports = append(exports, externGlobal)
		exports = append(exports, EncodeULEB128(uint32(i))...)
		numExports++
	}
	if g.memory != nil && g.memory.export != "" {
		exports = appendName(exports, g.memory.export)
		exports = append(exports, externMemory, 0x00)
		numExports++
	}
	wasm = appendSection(wasm, sectionExport, numExports, exports)

	var code []byte
	for _, f := range g.funcs {
		code = append(code, EncodeULEB128(uint32(len(f.body)))...)
		code = append(code, f.body...)
	}
	return appendSection(wasm, sectionCode, len(g.funcs), code)
}

// LocalGet returns local.get idx.
func LocalGet(idx uint32) []byte {
	return append([]byte{OpLocalGet}, EncodeULEB128(idx)...)
}

// Call returns call idx.
func Call(idx uint32) []byte {
	return append([]byte{OpCall}, EncodeULEB128(idx)...)
}

// I32Const returns i32.const v.
func I32Const(v int32) []byte {
	return append([]byte{OpI32Const}, EncodeSLEB128(v)...)
}

// I64Const returns i64.const v.
func I64Const(v int64) []byte {
	return append([]byte{OpI64Const}, EncodeSLEB128(v)...)
}

// F64Const returns f64.const v.
func F64Const(v float64) []byte {
	return binary.LittleEndian.AppendUint64([]byte{OpF64Const}, math.Float64bits(v))
}

// I64Load returns i64.load with alignment 3 and offset 0.
func I64Load() []byte {
	return []byte{OpI64Load, 0x03, 0x00}
}

// I64Store returns i64.store with alignment 3 and offset 0.
func I64Store() []byte {
	return []byte{OpI64Store, 0x03, 0x00}
}

// I32Load returns i32.load with alignment 2 and offset 0.
func I32Load() []byte {
	return []byte{OpI32Load, 0x02, 0x00}
}

// MemorySize returns memory.size for memory 0.
func MemorySize() []byte {
	return []byte{OpMemorySize, 0x00}
}
