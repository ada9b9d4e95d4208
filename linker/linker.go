package linker

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/internal/wasm"
	"github.com/wippyai/wasm-host/resolve"
)

// Options configures linker behavior.
type Options struct {
	// GuestName is the module name given to instantiated guests when the
	// module config does not set one.
	GuestName string
	// TrapUnresolved stubs unresolved function imports with a function that
	// traps when called, instead of failing instantiation.
	TrapUnresolved bool
}

// DefaultOptions returns default linker configuration.
func DefaultOptions() Options {
	return Options{}
}

// Linker instantiates guests against resolvers in one wazero runtime.
// Thread-safe.
type Linker struct {
	runtime wazero.Runtime
	bound   map[string]*Instance
	options Options
	seq     atomic.Uint64
	mu      sync.Mutex
}

// New creates a new Linker with the given wazero runtime and options.
func New(rt wazero.Runtime, opts Options) *Linker {
	return &Linker{
		runtime: rt,
		options: opts,
		bound:   make(map[string]*Instance),
	}
}

// NewWithDefaults creates a new Linker with default options.
func NewWithDefaults(rt wazero.Runtime) *Linker {
	return New(rt, DefaultOptions())
}

// Runtime returns the wazero runtime.
func (l *Linker) Runtime() wazero.Runtime {
	return l.runtime
}

// Instantiate resolves every import of compiled through r, publishes the
// imports and instantiates the guest with cfg (nil for defaults). Start
// functions configured in cfg run during instantiation.
func (l *Linker) Instantiate(ctx context.Context, compiled wazero.CompiledModule, r resolve.Resolver, cfg wazero.ModuleConfig) (*Instance, error) {
	plans, err := l.plan(compiled, r)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, p := range plans {
		if _, taken := l.bound[p.namespace]; taken || l.runtime.Module(p.namespace) != nil {
			return nil, errors.New(errors.PhaseLink, errors.KindInstantiation).
				Path(p.namespace).
				Detail("namespace is already bound in the runtime").
				Build()
		}
	}

	inst := &Instance{linker: l}
	for _, p := range plans {
		if err := l.publish(ctx, inst, p); err != nil {
			return nil, multierr.Append(err, inst.closeModules(ctx))
		}
		inst.namespaces = append(inst.namespaces, p.namespace)
	}

	if cfg == nil {
		cfg = wazero.NewModuleConfig()
	}
	if l.options.GuestName != "" {
		cfg = cfg.WithName(l.options.GuestName)
	}
	guest, err := l.runtime.InstantiateModule(ctx, compiled, cfg)
	if err == nil && guest == nil {
		err = fmt.Errorf("guest exited during start")
	}
	if err != nil {
		err = errors.New(errors.PhaseLink, errors.KindInstantiation).
			Cause(err).
			Detail("instantiate guest").
			Build()
		return nil, multierr.Append(err, inst.closeModules(ctx))
	}
	inst.guest = guest

	for _, ns := range inst.namespaces {
		l.bound[ns] = inst
	}
	Logger().Debug("guest instantiated",
		zap.String("module", guest.Name()),
		zap.Strings("namespaces", inst.namespaces))
	return inst, nil
}

// publish instantiates the hidden host module and the re-export module for
// one namespace.
func (l *Linker) publish(ctx context.Context, inst *Instance, p *namespacePlan) error {
	re := wasm.NewReexport()

	if p.hasHostFuncs() {
		hidden := fmt.Sprintf("%s#host.%d", p.namespace, l.seq.Inc())
		hb := l.runtime.NewHostModuleBuilder(hidden)
		for _, f := range p.funcs {
			var fn api.GoModuleFunc
			switch e := f.export.(type) {
			case resolve.ModuleFunc:
				continue
			case resolve.HostFunc:
				fn = e.Fn
			default:
				fn = trap(p.namespace, f.name)
			}
			hb.NewFunctionBuilder().
				WithGoModuleFunction(fn, f.params, f.results).
				WithName(f.name).
				Export(f.name)
			re.AddFunc(hidden, f.name, f.name, f.params, f.results)
		}
		mod, err := hb.Instantiate(ctx)
		if err != nil {
			return errors.New(errors.PhaseLink, errors.KindInstantiation).
				Path(p.namespace).
				Cause(err).
				Detail("instantiate host functions").
				Build()
		}
		inst.modules = append(inst.modules, mod)
	}

	for _, f := range p.funcs {
		if e, ok := f.export.(resolve.ModuleFunc); ok {
			re.AddFunc(e.Module.Name(), e.ExportName, f.name, f.params, f.results)
		}
	}

	if p.memory != nil {
		m := p.memory.export
		maxPages := m.MaxPages
		limits := wasm.Limits{Min: m.MinPages, Max: &maxPages, Shared: m.Shared}
		re.SetMemory(m.Module.Name(), m.ExportName, p.memory.name, limits)
	}

	mod, err := l.runtime.InstantiateWithConfig(ctx, re.Build(),
		wazero.NewModuleConfig().WithName(p.namespace))
	if err != nil {
		return errors.New(errors.PhaseLink, errors.KindInstantiation).
			Path(p.namespace).
			Cause(err).
			Detail("publish namespace").
			Build()
	}
	inst.modules = append(inst.modules, mod)
	return nil
}

func (l *Linker) unbind(inst *Instance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ns := range inst.namespaces {
		if l.bound[ns] == inst {
			delete(l.bound, ns)
		}
	}
}

// trap returns a function that fails the guest call with KindMissingImport.
func trap(ns, name string) api.GoModuleFunc {
	return func(context.Context, api.Module, []uint64) {
		panic(errors.New(errors.PhaseCall, errors.KindMissingImport).
			Path(ns, name).
			Detail("called unresolved import").
			Build())
	}
}

func zapImport(ns, name string) []zap.Field {
	return []zap.Field{zap.String("namespace", ns), zap.String("name", name)}
}
