package wasm

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64
)

func newRuntime(t *testing.T) (context.Context, wazero.Runtime) {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })
	return ctx, rt
}

func TestMemoryModule_Instantiate(t *testing.T) {
	ctx, rt := newRuntime(t)

	three := uint32(3)
	mod, err := rt.InstantiateWithConfig(ctx, MemoryModule(Limits{Min: 2, Max: &three}),
		wazero.NewModuleConfig().WithName("mem"))
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	mem := mod.ExportedMemory(MemoryExport)
	if mem == nil {
		t.Fatal("memory not exported")
	}
	if mem.Size() != 2*65536 {
		t.Errorf("Size = %d", mem.Size())
	}
	if max, ok := mem.Definition().Max(); !ok || max != 3 {
		t.Errorf("Max = %d, %v", max, ok)
	}
}

func TestReexport(t *testing.T) {
	ctx, rt := newRuntime(t)

	_, err := rt.NewHostModuleBuilder("host").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			stack[0] = api.EncodeI64(int64(api.DecodeI32(stack[0])) * 10)
		}), []api.ValueType{i32}, []api.ValueType{i64}).
		Export("times10").
		Instantiate(ctx)
	if err != nil {
		t.Fatalf("host module: %v", err)
	}
	memMod, err := rt.InstantiateWithConfig(ctx, MemoryModule(Limits{Min: 1}),
		wazero.NewModuleConfig().WithName("hidden-mem"))
	if err != nil {
		t.Fatalf("memory module: %v", err)
	}

	re := NewReexport()
	if !re.Empty() {
		t.Fatal("new builder should be empty")
	}
	re.AddFunc("host", "times10", "scale", []api.ValueType{i32}, []api.ValueType{i64})
	re.SetMemory("hidden-mem", MemoryExport, "memory", Limits{Min: 1})
	if _, err := rt.InstantiateWithConfig(ctx, re.Build(), wazero.NewModuleConfig().WithName("env")); err != nil {
		t.Fatalf("re-export module: %v", err)
	}

	g := NewGuest()
	scale := g.ImportFunc("env", "scale", []api.ValueType{i32}, []api.ValueType{i64})
	g.ImportMemory("env", "memory", Limits{Min: 1})
	g.Func("run", []api.ValueType{i32}, []api.ValueType{i64},
		LocalGet(0), Call(scale))
	g.Func("store", []api.ValueType{i32, i64}, nil,
		LocalGet(0), LocalGet(1), I64Store())

	guest, err := rt.InstantiateWithConfig(ctx, g.Build(), wazero.NewModuleConfig().WithName("guest"))
	if err != nil {
		t.Fatalf("guest: %v", err)
	}

	res, err := guest.ExportedFunction("run").Call(ctx, api.EncodeI32(-4))
	if err != nil {
		t.Fatal(err)
	}
	if got := int64(res[0]); got != -40 {
		t.Errorf("run(-4) = %d, want -40", got)
	}

	if _, err := guest.ExportedFunction("store").Call(ctx, 16, 0x1122334455667788); err != nil {
		t.Fatal(err)
	}
	v, ok := memMod.ExportedMemory(MemoryExport).ReadUint64Le(16)
	if !ok || v != 0x1122334455667788 {
		t.Errorf("shared memory read = %#x, %v", v, ok)
	}
}

func TestGuest_ExportMemory(t *testing.T) {
	ctx, rt := newRuntime(t)

	if _, err := rt.InstantiateWithConfig(ctx, MemoryModule(Limits{Min: 1}),
		wazero.NewModuleConfig().WithName("env")); err != nil {
		t.Fatal(err)
	}

	g := NewGuest()
	g.ImportMemory("env", "memory", Limits{Min: 1})
	g.ExportMemory("mem")
	g.Func("pages", nil, []api.ValueType{i32}, MemorySize())
	g.Func("load", []api.ValueType{i32}, []api.ValueType{i32}, LocalGet(0), I32Load())
	g.Func("const", nil, []api.ValueType{i64}, I64Const(-5))

	mod, err := rt.Instantiate(ctx, g.Build())
	if err != nil {
		t.Fatal(err)
	}
	if mod.ExportedMemory("mem") == nil {
		t.Fatal("memory not re-exported")
	}
	mod.ExportedMemory("mem").WriteUint32Le(8, 99)

	if res, _ := mod.ExportedFunction("pages").Call(ctx); res[0] != 1 {
		t.Errorf("pages = %d", res[0])
	}
	if res, _ := mod.ExportedFunction("load").Call(ctx, 8); res[0] != 99 {
		t.Errorf("load = %d", res[0])
	}
	if res, _ := mod.ExportedFunction("const").Call(ctx); int64(res[0]) != -5 {
		t.Errorf("const = %d", int64(res[0]))
	}
}
