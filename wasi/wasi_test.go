package wasi

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	werrors "github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/internal/wasm"
	"github.com/wippyai/wasm-host/resolve"
)

var i32 = api.ValueTypeI32

func TestFinalize_Validation(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"nul in arg", Config{Args: []string{"a\x00b"}}},
		{"empty env key", Config{Env: map[string]string{"": "x"}}},
		{"equals in env key", Config{Env: map[string]string{"A=B": "x"}}},
		{"missing preopen", Config{Preopens: map[string]string{"/data": filepath.Join(t.TempDir(), "nope")}}},
		{"preopen file", Config{Preopens: map[string]string{"/data": file}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Finalize()
			var e *werrors.Error
			if !errors.As(err, &e) || e.Phase != werrors.PhaseWASI {
				t.Errorf("err = %v, want a wasi error", err)
			}
		})
	}

	s, err := Config{ProgramName: "app", Args: []string{"x"}, Preopens: map[string]string{"/": t.TempDir()}}.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if args := s.Args(); len(args) != 2 || args[0] != "app" || args[1] != "x" {
		t.Errorf("Args = %v", args)
	}
}

func compile(t *testing.T, ctx context.Context, rt wazero.Runtime, g *wasm.Guest) wazero.CompiledModule {
	t.Helper()
	compiled, err := rt.CompileModule(ctx, g.Build())
	if err != nil {
		t.Fatal(err)
	}
	return compiled
}

func TestVersion(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	unstable := wasm.NewGuest()
	unstable.ImportFunc("env", "f", nil, nil)
	unstable.ImportFunc(Unstable, "proc_exit", []api.ValueType{i32}, nil)

	preview1 := wasm.NewGuest()
	preview1.ImportFunc(SnapshotPreview1, "proc_exit", []api.ValueType{i32}, nil)

	none := wasm.NewGuest()
	none.ImportFunc("env", "f", nil, nil)

	tests := []struct {
		name  string
		guest *wasm.Guest
		want  string
	}{
		{"unstable", unstable, Unstable},
		{"snapshot", preview1, SnapshotPreview1},
		{"none", none, SnapshotPreview1},
	}
	for _, tt := range tests {
		if got := Version(compile(t, ctx, rt, tt.guest)); got != tt.want {
			t.Errorf("%s: Version = %q, want %q", tt.name, got, tt.want)
		}
	}
	if Version(nil) != SnapshotPreview1 {
		t.Error("nil module should default to snapshot preview1")
	}
}

func TestImportObject_Resolve(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	g := wasm.NewGuest()
	g.ImportFunc(Unstable, "fd_write", []api.ValueType{i32, i32, i32, i32}, []api.ValueType{i32})
	compiled := compile(t, ctx, rt, g)

	state, err := Config{}.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	object, err := state.ImportObject(ctx, rt, compiled)
	if err != nil {
		t.Fatal(err)
	}
	defer object.Close(ctx)

	if object.Namespace() != Unstable {
		t.Errorf("Namespace = %q", object.Namespace())
	}
	e, ok := object.Resolve(Unstable, "fd_write")
	if !ok {
		t.Fatal("fd_write not served")
	}
	fn := e.(resolve.ModuleFunc)
	def := fn.Definition()
	if def == nil || len(def.ParamTypes()) != 4 {
		t.Errorf("fd_write definition = %v", def)
	}
	if _, ok := object.Resolve(SnapshotPreview1, "fd_write"); ok {
		t.Error("served under the wrong namespace")
	}
	if _, ok := object.Resolve(Unstable, "not_a_wasi_function"); ok {
		t.Error("resolved unknown function")
	}
}

func TestImportObject_ArgsAndStdout(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	var stdout bytes.Buffer
	state, err := Config{
		ProgramName: "prog",
		Args:        []string{"a", "bc"},
		Env:         map[string]string{"K": "V"},
		Stdout:      &stdout,
	}.Finalize()
	if err != nil {
		t.Fatal(err)
	}

	object, err := state.ImportObject(ctx, rt, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer object.Close(ctx)

	if _, err := rt.InstantiateWithConfig(ctx, wasm.MemoryModule(wasm.Limits{Min: 1}),
		wazero.NewModuleConfig().WithName("mem")); err != nil {
		t.Fatal(err)
	}

	hidden := object.Module().Name()
	g := wasm.NewGuest()
	sizes := g.ImportFunc(hidden, "args_sizes_get", []api.ValueType{i32, i32}, []api.ValueType{i32})
	write := g.ImportFunc(hidden, "fd_write", []api.ValueType{i32, i32, i32, i32}, []api.ValueType{i32})
	g.ImportMemory("mem", wasm.MemoryExport, wasm.Limits{Min: 1})
	g.ExportMemory("memory")
	g.Func("sizes", nil, []api.ValueType{i32},
		wasm.I32Const(0), wasm.I32Const(4), wasm.Call(sizes))
	g.Func("write", nil, []api.ValueType{i32},
		wasm.I32Const(1), wasm.I32Const(100), wasm.I32Const(1), wasm.I32Const(200), wasm.Call(write))

	mod, err := rt.InstantiateWithConfig(ctx, g.Build(), state.ModuleConfig().WithName("guest"))
	if err != nil {
		t.Fatal(err)
	}
	mem := mod.ExportedMemory("memory")

	res, err := mod.ExportedFunction("sizes").Call(ctx)
	if err != nil || res[0] != 0 {
		t.Fatalf("args_sizes_get = %v, %v", res, err)
	}
	argc, _ := mem.ReadUint32Le(0)
	bufSize, _ := mem.ReadUint32Le(4)
	if argc != 3 || bufSize != uint32(len("prog\x00a\x00bc\x00")) {
		t.Errorf("argc = %d, buf = %d", argc, bufSize)
	}

	msg := "hello\n"
	mem.Write(300, []byte(msg))
	mem.WriteUint32Le(100, 300)
	mem.WriteUint32Le(104, uint32(len(msg)))
	res, err = mod.ExportedFunction("write").Call(ctx)
	if err != nil || res[0] != 0 {
		t.Fatalf("fd_write = %v, %v", res, err)
	}
	if stdout.String() != msg {
		t.Errorf("stdout = %q", stdout.String())
	}
}
