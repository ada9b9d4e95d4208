package linker

import (
	"context"
	stderrors "errors"
	"slices"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/multierr"

	wasmhost "github.com/wippyai/wasm-host"
	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/memory"
	"github.com/wippyai/wasm-host/value"
)

// Instance is an instantiated guest together with the modules that publish
// its imports.
type Instance struct {
	linker     *Linker
	guest      api.Module
	modules    []api.Module
	namespaces []string
	closed     bool
}

// Function describes an exported guest function.
type Function struct {
	Name    string
	Params  []value.ValueType
	Results []value.ValueType
}

// Module returns the guest module.
func (inst *Instance) Module() api.Module {
	return inst.guest
}

// Namespaces returns the namespaces published for the guest.
func (inst *Instance) Namespaces() []string {
	return inst.namespaces
}

// Memory returns the guest's memory, exported or imported, or nil.
func (inst *Instance) Memory() wasmhost.GrowableMemory {
	if inst.guest == nil {
		return nil
	}
	mem := inst.guest.Memory()
	if mem == nil {
		return nil
	}
	return memory.Wrap(mem)
}

// Functions lists exported functions whose signatures use only the four
// scalar types, sorted by name.
func (inst *Instance) Functions() []Function {
	var out []Function
	for name, def := range inst.guest.ExportedFunctionDefinitions() {
		params, err := value.FromAPITypes(def.ParamTypes())
		if err != nil {
			continue
		}
		results, err := value.FromAPITypes(def.ResultTypes())
		if err != nil {
			continue
		}
		out = append(out, Function{Name: name, Params: params, Results: results})
	}
	slices.SortFunc(out, func(a, b Function) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Call invokes an exported function. Arguments must match its parameter
// types exactly. A failure raised by a host function is returned as the
// *errors.Error it raised, still wrapped with the guest stack trace; any
// other trap is KindTrap. A WASI exit is returned as *sys.ExitError.
func (inst *Instance) Call(ctx context.Context, name string, args ...value.Value) ([]value.Value, error) {
	if inst.closed {
		return nil, errClosed(name)
	}
	fn := inst.guest.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseCall, "export", name)
	}

	def := fn.Definition()
	params, err := value.FromAPITypes(def.ParamTypes())
	if err != nil {
		return nil, err
	}
	results, err := value.FromAPITypes(def.ResultTypes())
	if err != nil {
		return nil, err
	}

	if len(args) != len(params) {
		return nil, errors.ArityMismatch(errors.PhaseCall, []string{name}, "arguments", len(params), len(args))
	}
	for i, arg := range args {
		if arg.Type != params[i] {
			return nil, errors.TypeMismatch(errors.PhaseCall, []string{name},
				params[i].String(), arg.Type.String())
		}
	}

	stack := make([]uint64, len(args))
	value.ToStack(args, stack)
	out, err := fn.Call(ctx, stack...)
	if err != nil {
		return nil, classify(name, err)
	}
	return value.FromStack(results, out), nil
}

func classify(name string, err error) error {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return err
	}
	var exit *sys.ExitError
	if stderrors.As(err, &exit) {
		return err
	}
	return errors.New(errors.PhaseCall, errors.KindTrap).
		Path(name).
		Cause(err).
		Build()
}

func errClosed(name string) error {
	return errors.New(errors.PhaseCall, errors.KindInstantiation).
		Path(name).
		Detail("instance is closed").
		Build()
}

// Global reads an exported global.
func (inst *Instance) Global(name string) (value.Value, error) {
	g, t, err := inst.global(name)
	if err != nil {
		return value.Value{}, err
	}
	return value.FromBits(t, g.Get()), nil
}

// SetGlobal writes an exported mutable global. v must have the global's
// type exactly.
func (inst *Instance) SetGlobal(name string, v value.Value) error {
	g, t, err := inst.global(name)
	if err != nil {
		return err
	}
	if v.Type != t {
		return errors.TypeMismatch(errors.PhaseCall, []string{name}, t.String(), v.Type.String())
	}
	mg, ok := g.(api.MutableGlobal)
	if !ok {
		return errors.New(errors.PhaseCall, errors.KindUnsupported).
			Path(name).
			Detail("global is immutable").
			Build()
	}
	mg.Set(v.Bits())
	return nil
}

func (inst *Instance) global(name string) (api.Global, value.ValueType, error) {
	if inst.closed {
		return nil, 0, errClosed(name)
	}
	g := inst.guest.ExportedGlobal(name)
	if g == nil {
		return nil, 0, errors.NotFound(errors.PhaseCall, "global", name)
	}
	t, err := value.FromAPI(g.Type())
	if err != nil {
		return nil, 0, err
	}
	return g, t, nil
}

// Close closes the guest and the modules publishing its imports, and frees
// its namespaces for other guests. Close is idempotent.
func (inst *Instance) Close(ctx context.Context) error {
	if inst.closed {
		return nil
	}
	inst.closed = true

	var err error
	if inst.guest != nil {
		err = inst.guest.Close(ctx)
	}
	err = multierr.Append(err, inst.closeModules(ctx))
	inst.linker.unbind(inst)
	return err
}

// closeModules closes publishing modules in reverse creation order.
func (inst *Instance) closeModules(ctx context.Context) error {
	var err error
	for i := len(inst.modules) - 1; i >= 0; i-- {
		err = multierr.Append(err, inst.modules[i].Close(ctx))
	}
	inst.modules = nil
	return err
}
