// Package resolve defines what an import resolves to and how resolvers
// compose.
//
// An Export is one of three sources: a host function implemented in Go, a
// function exported by an already instantiated module, or a linear memory.
// A Resolver maps (namespace, name) to an Export. Resolvers are composed
// with Chain, which consults the front resolver first and falls back to the
// back resolver on a miss.
package resolve

import (
	"github.com/tetratelabs/wazero/api"

	wasmhost "github.com/wippyai/wasm-host"
	"github.com/wippyai/wasm-host/value"
)

// ExportKind identifies the extern kind of an export.
type ExportKind uint8

const (
	ExportFunc ExportKind = iota
	ExportMemory
)

func (k ExportKind) String() string {
	if k == ExportMemory {
		return "memory"
	}
	return "func"
}

// Export is the interface for import sources.
type Export interface {
	Kind() ExportKind
	isExport()
}

// HostFunc is a function implemented by the host. Fn already performs
// marshaling between the wazero stack and the callback.
type HostFunc struct {
	Fn      api.GoModuleFunc
	Params  []value.ValueType
	Results []value.ValueType
}

func (HostFunc) Kind() ExportKind { return ExportFunc }
func (HostFunc) isExport() {}

// ModuleFunc references a function exported by an instantiated module.
type ModuleFunc struct {
	Module     api.Module
	ExportName string
}

func (ModuleFunc) Kind() ExportKind { return ExportFunc }
func (ModuleFunc) isExport() {}

// Definition returns the function definition, or nil if the module does not
// export it.
func (f ModuleFunc) Definition() api.FunctionDefinition {
	if f.Module == nil {
		return nil
	}
	return f.Module.ExportedFunctionDefinitions()[f.ExportName]
}

// Memory is a host-created linear memory. Module and ExportName are set when
// the memory lives in a wazero module a guest can import from; a detached
// memory only has an Accessor.
type Memory struct {
	Accessor   wasmhost.GrowableMemory
	Module     api.Module
	ExportName string
	MinPages   uint32

	// MaxPages is the declared maximum, wasmhost.MaxPages when the
	// declaration gave none. Zero caps the memory at zero pages.
	MaxPages uint32
	Shared   bool
}

func (Memory) Kind() ExportKind { return ExportMemory }
func (Memory) isExport() {}

// Attached reports whether a guest can import the memory.
func (m Memory) Attached() bool {
	return m.Module != nil && m.ExportName != ""
}
