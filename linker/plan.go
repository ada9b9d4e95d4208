package linker

import (
	"slices"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/resolve"
	"github.com/wippyai/wasm-host/value"
)

// funcBinding is one function import of the guest and what serves it.
type funcBinding struct {
	export  resolve.Export // nil when stubbed with a trap
	name    string
	params  []api.ValueType
	results []api.ValueType
}

type memoryBinding struct {
	export resolve.Memory
	name   string
}

// namespacePlan is everything the guest imports from one namespace.
type namespacePlan struct {
	memory    *memoryBinding
	namespace string
	funcs     []funcBinding
}

func (p *namespacePlan) hasHostFuncs() bool {
	for _, f := range p.funcs {
		if _, ok := f.export.(resolve.ModuleFunc); !ok {
			return true
		}
	}
	return false
}

// plan resolves every import of compiled. All misses are collected before
// failing; any other problem fails immediately.
func (l *Linker) plan(compiled wazero.CompiledModule, r resolve.Resolver) ([]*namespacePlan, error) {
	plans := map[string]*namespacePlan{}
	get := func(ns string) *namespacePlan {
		p, ok := plans[ns]
		if !ok {
			p = &namespacePlan{namespace: ns}
			plans[ns] = p
		}
		return p
	}
	var missing []errors.MissingImport

	for _, def := range compiled.ImportedFunctions() {
		ns, name, _ := def.Import()
		b := funcBinding{name: name, params: def.ParamTypes(), results: def.ResultTypes()}

		e, ok := resolveIn(r, ns, name)
		if !ok {
			if !l.options.TrapUnresolved {
				missing = append(missing, errors.MissingImport{Namespace: ns, Name: name, Kind: "func"})
				continue
			}
			Logger().Warn("unresolved import stubbed with trap",
				zapImport(ns, name)...)
			get(ns).funcs = append(get(ns).funcs, b)
			continue
		}
		if err := checkFunc(ns, name, e, b.params, b.results); err != nil {
			return nil, err
		}
		b.export = e
		get(ns).funcs = append(get(ns).funcs, b)
	}

	for _, def := range compiled.ImportedMemories() {
		ns, name, _ := def.Import()

		e, ok := resolveIn(r, ns, name)
		if !ok {
			missing = append(missing, errors.MissingImport{Namespace: ns, Name: name, Kind: "memory"})
			continue
		}
		mem, ok := e.(resolve.Memory)
		if !ok {
			return nil, errors.TypeMismatch(errors.PhaseLink, []string{ns, name},
				"memory", e.Kind().String())
		}
		if !mem.Attached() {
			return nil, errors.New(errors.PhaseLink, errors.KindUnsupported).
				Path(ns, name).
				Detail("memory is not backed by a runtime module").
				Build()
		}
		p := get(ns)
		if p.memory != nil {
			return nil, errors.New(errors.PhaseLink, errors.KindUnsupported).
				Path(ns, name).
				Detail("namespace already provides memory %q", p.memory.name).
				Build()
		}
		p.memory = &memoryBinding{export: mem, name: name}
	}

	if len(missing) > 0 {
		return nil, &errors.MissingImportsError{Imports: missing}
	}

	out := make([]*namespacePlan, 0, len(plans))
	for _, p := range plans {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *namespacePlan) int { return strings.Compare(a.namespace, b.namespace) })
	return out, nil
}

func resolveIn(r resolve.Resolver, ns, name string) (resolve.Export, bool) {
	if r == nil {
		return nil, false
	}
	return r.Resolve(ns, name)
}

// checkFunc verifies that e can serve a function import with the given
// signature.
func checkFunc(ns, name string, e resolve.Export, params, results []api.ValueType) error {
	path := []string{ns, name}
	want := signature(params, results)

	switch f := e.(type) {
	case resolve.HostFunc:
		got := signature(value.APITypes(f.Params), value.APITypes(f.Results))
		if got != want {
			return errors.TypeMismatch(errors.PhaseLink, path, want, got)
		}
	case resolve.ModuleFunc:
		def := f.Definition()
		if def == nil {
			return errors.NotFound(errors.PhaseLink, "function export", f.ExportName)
		}
		got := signature(def.ParamTypes(), def.ResultTypes())
		if got != want {
			return errors.TypeMismatch(errors.PhaseLink, path, want, got)
		}
	default:
		return errors.TypeMismatch(errors.PhaseLink, path, "func", e.Kind().String())
	}
	return nil
}

func signature(params, results []api.ValueType) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, t := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(t))
	}
	b.WriteString(") -> (")
	for i, t := range results {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(t))
	}
	b.WriteByte(')')
	return b.String()
}
