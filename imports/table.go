package imports

import (
	"context"
	"slices"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"

	"github.com/wippyai/wasm-host/resolve"
)

// ExportSet maps import names to exports within one namespace.
type ExportSet map[string]resolve.Export

// Table is the result of Build: every declared import keyed by namespace and
// name. Table implements resolve.Resolver.
type Table struct {
	sets    map[string]ExportSet
	modules []api.Module
}

var _ resolve.Resolver = (*Table)(nil)

func newTable() *Table {
	return &Table{sets: make(map[string]ExportSet)}
}

func (t *Table) define(namespace, name string, e resolve.Export) {
	set, ok := t.sets[namespace]
	if !ok {
		set = make(ExportSet)
		t.sets[namespace] = set
	}
	set[name] = e
}

// Resolve implements resolve.Resolver.
func (t *Table) Resolve(namespace, name string) (resolve.Export, bool) {
	e, ok := t.sets[namespace][name]
	return e, ok
}

// Namespaces returns the declared namespaces in sorted order.
func (t *Table) Namespaces() []string {
	out := make([]string, 0, len(t.sets))
	for ns := range t.sets {
		out = append(out, ns)
	}
	slices.Sort(out)
	return out
}

// Exports returns the export set of a namespace, or nil.
func (t *Table) Exports(namespace string) ExportSet {
	return t.sets[namespace]
}

// Len returns the number of distinct imports.
func (t *Table) Len() int {
	n := 0
	for _, set := range t.sets {
		n += len(set)
	}
	return n
}

// Close releases the memory modules created for the table. Guests that
// imported those memories must be closed first.
func (t *Table) Close(ctx context.Context) error {
	var err error
	for i := len(t.modules) - 1; i >= 0; i-- {
		err = multierr.Append(err, t.modules[i].Close(ctx))
	}
	t.modules = nil
	return err
}
