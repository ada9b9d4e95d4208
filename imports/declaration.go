package imports

import (
	"context"

	wasmhost "github.com/wippyai/wasm-host"
	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/value"
)

// Callback implements a host function. args are boxed per the declared
// parameter types and the returned slice must hold one boxed value per
// declared result. A returned error, or a panic, aborts the guest call.
type Callback func(ctx context.Context, args []value.Boxed) ([]value.Boxed, error)

// Declaration is one import offered to a guest: a Func or a Memory.
type Declaration interface {
	Key() (namespace, name string)
	isDeclaration()
}

// Func declares a host function.
type Func struct {
	Callback  Callback
	Namespace string
	Name      string
	Params    []value.ValueType
	Results   []value.ValueType
}

func (f Func) Key() (string, string) { return f.Namespace, f.Name }
func (Func) isDeclaration() {}

// Memory declares a host-created linear memory of MinPages pages, growable
// to MaxPages (nil means the 32-bit limit).
type Memory struct {
	MaxPages  *uint32
	Namespace string
	Name      string
	MinPages  uint32
	Shared    bool
}

func (m Memory) Key() (string, string) { return m.Namespace, m.Name }
func (Memory) isDeclaration() {}

// maxPages returns the effective maximum.
func (m Memory) maxPages() uint32 {
	if m.MaxPages == nil {
		return wasmhost.MaxPages
	}
	return *m.MaxPages
}

func validateKey(namespace, name string) error {
	if namespace == "" {
		return errors.InvalidInput(errors.PhaseRegistry, "empty import namespace")
	}
	if name == "" {
		return errors.New(errors.PhaseRegistry, errors.KindInvalidInput).
			Path(namespace).
			Detail("empty import name").
			Build()
	}
	return nil
}

func (f Func) validate() error {
	if err := validateKey(f.Namespace, f.Name); err != nil {
		return err
	}
	if f.Callback == nil {
		return errors.New(errors.PhaseRegistry, errors.KindInvalidInput).
			Path(f.Namespace, f.Name).
			Detail("nil callback").
			Build()
	}
	for _, t := range f.Params {
		if !t.Valid() {
			return errors.New(errors.PhaseRegistry, errors.KindOther).
				Path(f.Namespace, f.Name).
				Detail("unknown parameter type %d", uint8(t)).
				Build()
		}
	}
	for _, t := range f.Results {
		if !t.Valid() {
			return errors.New(errors.PhaseRegistry, errors.KindOther).
				Path(f.Namespace, f.Name).
				Detail("unknown result type %d", uint8(t)).
				Build()
		}
	}
	return nil
}

func (m Memory) validate() error {
	if err := validateKey(m.Namespace, m.Name); err != nil {
		return err
	}
	if m.MaxPages != nil && *m.MaxPages > wasmhost.MaxPages {
		e := errors.AllocationTooLarge(errors.PhaseRegistry, uint64(*m.MaxPages), wasmhost.MaxPages)
		e.Path = []string{m.Namespace, m.Name}
		return e
	}
	if m.MinPages > m.maxPages() {
		return errors.New(errors.PhaseRegistry, errors.KindOther).
			Path(m.Namespace, m.Name).
			Detail("minimum %d pages exceeds maximum %d", m.MinPages, m.maxPages()).
			Build()
	}
	if m.Shared && m.MaxPages == nil {
		return errors.New(errors.PhaseRegistry, errors.KindOther).
			Path(m.Namespace, m.Name).
			Detail("shared memory requires a maximum").
			Build()
	}
	return nil
}
