package imports

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	wasmhost "github.com/wippyai/wasm-host"
	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/internal/wasm"
	"github.com/wippyai/wasm-host/memory"
	"github.com/wippyai/wasm-host/resolve"
)

// Options configures import table construction.
type Options struct {
	// Metrics records host calls when set.
	Metrics *Metrics
	// RejectDuplicates fails Build when a batch declares the same
	// (namespace, name) twice. Otherwise the last declaration wins.
	RejectDuplicates bool
}

// DefaultOptions returns default builder configuration.
func DefaultOptions() Options {
	return Options{}
}

var memorySeq atomic.Uint64

// Builder turns import declarations into a Table.
type Builder struct {
	runtime wazero.Runtime
	opts    Options
}

// NewBuilder creates a builder. Memories are created as wazero modules in rt
// so guests can import them; with a nil rt they are plain byte buffers that
// only host code can reach. Shared memories need rt to enable
// experimental.CoreFeaturesThreads.
func NewBuilder(rt wazero.Runtime, opts Options) *Builder {
	return &Builder{runtime: rt, opts: opts}
}

// batch is the memory binding shared by the trampolines of one Build call.
// It is complete before any trampoline can run.
type batch struct {
	byNamespace map[string]wasmhost.GrowableMemory
	last        wasmhost.GrowableMemory
	memories    []batchMemory
}

// batchMemory is a memory export still reachable through the table, in
// declaration order.
type batchMemory struct {
	mem       wasmhost.GrowableMemory
	namespace string
	name      string
}

// bind records mem as the export at (namespace, name), replacing whatever
// the key held before. A nil mem only drops the key.
func (s *batch) bind(namespace, name string, mem wasmhost.GrowableMemory) {
	kept := s.memories[:0]
	for _, m := range s.memories {
		if m.namespace != namespace || m.name != name {
			kept = append(kept, m)
		}
	}
	s.memories = kept
	if mem != nil {
		s.memories = append(s.memories, batchMemory{mem: mem, namespace: namespace, name: name})
	}

	clear(s.byNamespace)
	s.last = nil
	for _, m := range s.memories {
		s.byNamespace[m.namespace] = m.mem
		s.last = m.mem
	}
}

func (s *batch) memoryFor(namespace string) wasmhost.GrowableMemory {
	if m, ok := s.byNamespace[namespace]; ok {
		return m
	}
	return s.last
}

// Build processes decls in order. Every declaration is validated before it
// takes effect; on error, memories created so far are released and no table
// is returned. On success the last declared memory that the table still
// exports becomes CurrentMemory.
func (b *Builder) Build(ctx context.Context, decls []Declaration) (*Table, error) {
	log := Logger()
	table := newTable()
	scope := &batch{byNamespace: make(map[string]wasmhost.GrowableMemory)}

	fail := func(err error) (*Table, error) {
		_ = table.Close(ctx)
		return nil, err
	}

	for _, decl := range decls {
		ns, name := decl.Key()
		if err := validate(decl); err != nil {
			return fail(err)
		}

		if _, exists := table.Resolve(ns, name); exists {
			if b.opts.RejectDuplicates {
				return fail(errors.New(errors.PhaseRegistry, errors.KindDuplicate).
					Path(ns, name).
					Detail("import declared more than once").
					Build())
			}
			log.Warn("import redeclared, last declaration wins",
				zap.String("namespace", ns),
				zap.String("name", name))
		}

		var exp resolve.Export
		switch d := decl.(type) {
		case Func:
			scope.bind(ns, name, nil)
			exp = resolve.HostFunc{
				Fn:      b.trampoline(d, scope),
				Params:  d.Params,
				Results: d.Results,
			}
		case Memory:
			mem, err := b.newMemory(ctx, d)
			if err != nil {
				return fail(err)
			}
			if mem.Module != nil {
				table.modules = append(table.modules, mem.Module)
			}
			scope.bind(ns, name, mem.Accessor)
			exp = mem
		}
		table.define(ns, name, exp)

		log.Debug("import declared",
			zap.String("namespace", ns),
			zap.String("name", name),
			zap.Stringer("kind", exp.Kind()))
	}

	if scope.last != nil {
		setCurrentMemory(scope.last)
	}
	return table, nil
}

func validate(decl Declaration) error {
	switch d := decl.(type) {
	case Func:
		return d.validate()
	case Memory:
		return d.validate()
	}
	return errors.Unsupported(errors.PhaseRegistry, fmt.Sprintf("declaration type %T", decl))
}

func (b *Builder) newMemory(ctx context.Context, d Memory) (resolve.Memory, error) {
	maxPages := d.maxPages()
	if b.runtime == nil {
		lin, err := memory.NewLinear(d.MinPages, &maxPages)
		if err != nil {
			return resolve.Memory{}, err
		}
		return resolve.Memory{
			Accessor: lin,
			MinPages: d.MinPages,
			MaxPages: maxPages,
			Shared:   d.Shared,
		}, nil
	}

	limits := wasm.Limits{Min: d.MinPages, Max: &maxPages, Shared: d.Shared}
	hidden := fmt.Sprintf("%s#memory.%d", d.Namespace, memorySeq.Inc())
	mod, err := b.runtime.InstantiateWithConfig(ctx, wasm.MemoryModule(limits),
		wazero.NewModuleConfig().WithName(hidden))
	if err != nil && d.Shared {
		return resolve.Memory{}, errors.New(errors.PhaseRegistry, errors.KindUnsupported).
			Path(d.Namespace, d.Name).
			Cause(err).
			Detail("shared memory needs a runtime with experimental.CoreFeaturesThreads").
			Build()
	}
	if err != nil {
		return resolve.Memory{}, errors.New(errors.PhaseRegistry, errors.KindOther).
			Path(d.Namespace, d.Name).
			Cause(err).
			Detail("create memory").
			Build()
	}

	return resolve.Memory{
		Accessor:   memory.Wrap(mod.ExportedMemory(wasm.MemoryExport)),
		Module:     mod,
		ExportName: wasm.MemoryExport,
		MinPages:   d.MinPages,
		MaxPages:   maxPages,
		Shared:     d.Shared,
	}, nil
}
