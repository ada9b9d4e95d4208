package imports

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	wasmhost "github.com/wippyai/wasm-host"
	werrors "github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/memory"
	"github.com/wippyai/wasm-host/resolve"
	"github.com/wippyai/wasm-host/value"
)

func nopCallback(context.Context, []value.Boxed) ([]value.Boxed, error) {
	return nil, nil
}

func pages(n uint32) *uint32 { return &n }

func kindOf(err error) werrors.Kind {
	var e *werrors.Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func TestBuild_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	b := NewBuilder(nil, DefaultOptions())

	table, err := b.Build(ctx, []Declaration{
		Func{Namespace: "env", Name: "f", Results: []value.ValueType{value.I32}, Callback: nopCallback},
		Func{Namespace: "env", Name: "g", Callback: nopCallback},
		Func{Namespace: "env", Name: "f", Results: []value.ValueType{value.F64}, Callback: nopCallback},
		Memory{Namespace: "env", Name: "memory", MinPages: 1},
		Memory{Namespace: "env", Name: "memory", MinPages: 2},
	})
	if err != nil {
		t.Fatal(err)
	}

	if table.Len() != 3 {
		t.Errorf("Len = %d, want 3", table.Len())
	}
	e, ok := table.Resolve("env", "f")
	if !ok {
		t.Fatal("env.f missing")
	}
	if got := e.(resolve.HostFunc).Results; !slices.Equal(got, []value.ValueType{value.F64}) {
		t.Errorf("env.f results = %v, want the later declaration", got)
	}

	e, _ = table.Resolve("env", "memory")
	mem := e.(resolve.Memory)
	if mem.MinPages != 2 || mem.Accessor.Size() != 2*wasmhost.PageSize {
		t.Errorf("env.memory = %d pages, size %d", mem.MinPages, mem.Accessor.Size())
	}
	if mem.Attached() {
		t.Error("detached builder produced an attached memory")
	}
	if CurrentMemory() != mem.Accessor {
		t.Error("current memory should be the last declared memory")
	}
}

func TestBuild_RedeclaredMemory(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		decls      []Declaration
		wantMemory string // key of the memory the slot must hold, "" for none
	}{
		{
			name: "func replaces only memory",
			decls: []Declaration{
				Memory{Namespace: "env", Name: "x", MinPages: 1},
				Func{Namespace: "env", Name: "x", Callback: nopCallback},
			},
		},
		{
			name: "func replaces later memory",
			decls: []Declaration{
				Memory{Namespace: "env", Name: "memory", MinPages: 1},
				Memory{Namespace: "other", Name: "x", MinPages: 2},
				Func{Namespace: "other", Name: "x", Callback: nopCallback},
			},
			wantMemory: "env.memory",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setCurrentMemory(nil)
			table, err := NewBuilder(nil, DefaultOptions()).Build(ctx, tt.decls)
			if err != nil {
				t.Fatal(err)
			}

			exported := map[string]wasmhost.GrowableMemory{}
			for _, ns := range table.Namespaces() {
				for name, e := range table.Exports(ns) {
					if m, ok := e.(resolve.Memory); ok {
						exported[ns+"."+name] = m.Accessor
					}
				}
			}

			cur := CurrentMemory()
			if tt.wantMemory == "" {
				if cur != nil {
					t.Errorf("current memory set to a memory the table no longer exports")
				}
				return
			}
			if cur == nil || cur != exported[tt.wantMemory] {
				t.Errorf("current memory is not %s", tt.wantMemory)
			}
		})
	}
}

func TestBatch_Bind(t *testing.T) {
	a, _ := memory.NewLinear(1, nil)
	b, _ := memory.NewLinear(1, nil)
	s := &batch{byNamespace: make(map[string]wasmhost.GrowableMemory)}

	s.bind("env", "a", a)
	s.bind("other", "b", b)
	if s.memoryFor("env") != a || s.memoryFor("other") != b || s.last != b {
		t.Fatal("bind")
	}

	s.bind("other", "b", nil)
	if s.last != a {
		t.Error("last should fall back to the surviving memory")
	}
	if _, ok := s.byNamespace["other"]; ok {
		t.Error("replaced memory still bound to its namespace")
	}
	if s.memoryFor("other") != a {
		t.Error("namespace without a memory should see the last one")
	}

	s.bind("env", "a", nil)
	if s.last != nil || s.memoryFor("env") != nil {
		t.Error("no memory should remain")
	}
}

func TestBuild_SharedMemory(t *testing.T) {
	ctx := context.Background()
	decls := []Declaration{
		Memory{Namespace: "env", Name: "memory", MinPages: 1, MaxPages: pages(2), Shared: true},
	}

	t.Run("threads enabled", func(t *testing.T) {
		rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().
			WithCoreFeatures(api.CoreFeaturesV2|experimental.CoreFeaturesThreads))
		defer rt.Close(ctx)

		table, err := NewBuilder(rt, DefaultOptions()).Build(ctx, decls)
		if err != nil {
			t.Fatal(err)
		}
		defer table.Close(ctx)

		e, _ := table.Resolve("env", "memory")
		mem := e.(resolve.Memory)
		if !mem.Shared || !mem.Attached() || mem.MaxPages != 2 {
			t.Errorf("memory = %+v", mem)
		}
		if mem.Accessor.Size() != wasmhost.PageSize {
			t.Errorf("Size = %d", mem.Accessor.Size())
		}
	})

	t.Run("threads disabled", func(t *testing.T) {
		rt := wazero.NewRuntime(ctx)
		defer rt.Close(ctx)

		table, err := NewBuilder(rt, DefaultOptions()).Build(ctx, decls)
		if table != nil {
			t.Error("table returned on error")
		}
		if kindOf(err) != werrors.KindUnsupported {
			t.Errorf("err = %v, want unsupported", err)
		}
	})
}

func TestBuild_RejectDuplicates(t *testing.T) {
	opts := DefaultOptions()
	opts.RejectDuplicates = true
	b := NewBuilder(nil, opts)

	_, err := b.Build(context.Background(), []Declaration{
		Func{Namespace: "env", Name: "f", Callback: nopCallback},
		Func{Namespace: "env", Name: "f", Callback: nopCallback},
	})
	if kindOf(err) != werrors.KindDuplicate {
		t.Errorf("err = %v, want duplicate", err)
	}
}

func TestBuild_Validation(t *testing.T) {
	tests := []struct {
		name string
		decl Declaration
		kind werrors.Kind
	}{
		{"empty namespace", Func{Name: "f", Callback: nopCallback}, werrors.KindInvalidInput},
		{"empty name", Memory{Namespace: "env"}, werrors.KindInvalidInput},
		{"nil callback", Func{Namespace: "env", Name: "f"}, werrors.KindInvalidInput},
		{"bad param", Func{Namespace: "env", Name: "f", Params: []value.ValueType{7}, Callback: nopCallback}, werrors.KindOther},
		{"bad result", Func{Namespace: "env", Name: "f", Results: []value.ValueType{0}, Callback: nopCallback}, werrors.KindOther},
		{"max too large", Memory{Namespace: "env", Name: "m", MaxPages: pages(wasmhost.MaxPages + 1)}, werrors.KindRequestedAllocationTooLarge},
		{"min above max", Memory{Namespace: "env", Name: "m", MinPages: 3, MaxPages: pages(2)}, werrors.KindOther},
		{"shared without max", Memory{Namespace: "env", Name: "m", Shared: true}, werrors.KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := NewBuilder(nil, DefaultOptions()).Build(context.Background(), []Declaration{tt.decl})
			if table != nil {
				t.Error("table returned on error")
			}
			if kindOf(err) != tt.kind {
				t.Errorf("err = %v, want %s", err, tt.kind)
			}
		})
	}
}

func TestBuild_AmbientMemory(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	table, err := NewBuilder(rt, DefaultOptions()).Build(ctx, []Declaration{
		Memory{Namespace: "env", Name: "memory", MinPages: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer table.Close(ctx)

	cur := CurrentMemory()
	if cur == nil {
		t.Fatal("no current memory")
	}
	if cur.Size() != wasmhost.PageSize {
		t.Errorf("Size = %d, want %d", cur.Size(), wasmhost.PageSize)
	}
	if _, ok := cur.(*memory.Wrapper); !ok {
		t.Errorf("runtime memory should wrap a wazero memory, got %T", cur)
	}

	e, _ := table.Resolve("env", "memory")
	mem := e.(resolve.Memory)
	if !mem.Attached() || mem.MaxPages != wasmhost.MaxPages {
		t.Errorf("memory = %+v", mem)
	}
	if rt.Module(mem.Module.Name()) == nil {
		t.Error("memory module not instantiated in the runtime")
	}

	if err := table.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if rt.Module(mem.Module.Name()) != nil {
		t.Error("memory module still present after Close")
	}
}

func TestBuild_FailureReleasesMemories(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	before := CurrentMemory()
	_, err := NewBuilder(rt, DefaultOptions()).Build(ctx, []Declaration{
		Memory{Namespace: "env", Name: "memory", MinPages: 1},
		Func{Namespace: "env", Name: ""},
	})
	if kindOf(err) != werrors.KindInvalidInput {
		t.Fatalf("err = %v", err)
	}
	if CurrentMemory() != before {
		t.Error("failed build replaced the current memory")
	}
	hidden := fmt.Sprintf("env#memory.%d", memorySeq.Load())
	if rt.Module(hidden) != nil {
		t.Errorf("memory module %s not released", hidden)
	}
}

func TestTable_Namespaces(t *testing.T) {
	table, err := NewBuilder(nil, DefaultOptions()).Build(context.Background(), []Declaration{
		Func{Namespace: "wasi", Name: "a", Callback: nopCallback},
		Func{Namespace: "env", Name: "b", Callback: nopCallback},
	})
	if err != nil {
		t.Fatal(err)
	}
	ns := table.Namespaces()
	if len(ns) != 2 || ns[0] != "env" || ns[1] != "wasi" {
		t.Errorf("Namespaces = %v", ns)
	}
	if len(table.Exports("env")) != 1 || table.Exports("missing") != nil {
		t.Error("Exports")
	}
}
