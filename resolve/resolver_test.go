package resolve

import (
	"testing"

	"github.com/wippyai/wasm-host/value"
)

func hostFunc(results ...value.ValueType) HostFunc {
	return HostFunc{Results: results}
}

func TestChain_Override(t *testing.T) {
	back := Map{}
	back.Define("env", "shared", hostFunc(value.I32))
	back.Define("env", "back_only", hostFunc(value.I64))

	front := Map{}
	front.Define("env", "shared", hostFunc(value.F32))
	front.Define("other", "front_only", hostFunc(value.F64))

	r := Chain(back, front)

	tests := []struct {
		ns, name string
		want     value.ValueType
		found    bool
	}{
		{"env", "shared", value.F32, true},
		{"env", "back_only", value.I64, true},
		{"other", "front_only", value.F64, true},
		{"env", "missing", 0, false},
		{"missing", "shared", 0, false},
	}
	for _, tt := range tests {
		e, ok := r.Resolve(tt.ns, tt.name)
		if ok != tt.found {
			t.Errorf("%s.%s: found = %v, want %v", tt.ns, tt.name, ok, tt.found)
			continue
		}
		if !ok {
			continue
		}
		if got := e.(HostFunc).Results[0]; got != tt.want {
			t.Errorf("%s.%s: resolved %s, want %s", tt.ns, tt.name, got, tt.want)
		}
	}
}

func TestChain_ReferencesInputs(t *testing.T) {
	back := Map{}
	front := Map{}
	r := Chain(back, front)

	if _, ok := r.Resolve("env", "late"); ok {
		t.Fatal("unexpected export")
	}
	back.Define("env", "late", hostFunc(value.I32))
	if _, ok := r.Resolve("env", "late"); !ok {
		t.Error("chain should see exports added to back after composition")
	}
	if len(front) != 0 {
		t.Error("chain must not modify its inputs")
	}
}

func TestChain_Nil(t *testing.T) {
	m := Map{}
	m.Define("env", "f", hostFunc())
	if Chain(nil, m) == nil || Chain(m, nil) == nil {
		t.Fatal("nil input should yield the other resolver")
	}
	if _, ok := Chain(nil, m).Resolve("env", "f"); !ok {
		t.Error("Chain(nil, front) lost front")
	}
	if _, ok := Chain(m, nil).Resolve("env", "f"); !ok {
		t.Error("Chain(back, nil) lost back")
	}
}

func TestChain_Nested(t *testing.T) {
	a, b, c := Map{}, Map{}, Map{}
	a.Define("env", "x", hostFunc(value.I32))
	b.Define("env", "x", hostFunc(value.I64))
	c.Define("env", "x", hostFunc(value.F32))
	c.Define("env", "y", hostFunc(value.F64))

	r := Chain(Chain(a, b), Func(func(ns, name string) (Export, bool) {
		if name == "y" {
			return nil, false
		}
		return c.Resolve(ns, name)
	}))
	e, _ := r.Resolve("env", "x")
	if e.(HostFunc).Results[0] != value.F32 {
		t.Error("outermost front should win")
	}
	if _, ok := r.Resolve("env", "y"); ok {
		t.Error("y is hidden by the func resolver and absent from a and b")
	}
}

func TestExportKinds(t *testing.T) {
	if (HostFunc{}).Kind() != ExportFunc || (ModuleFunc{}).Kind() != ExportFunc {
		t.Error("functions should have ExportFunc kind")
	}
	if (Memory{}).Kind() != ExportMemory || ExportMemory.String() != "memory" {
		t.Error("memory kind")
	}
	if (Memory{}).Attached() {
		t.Error("detached memory reported attached")
	}
	if (ModuleFunc{}).Definition() != nil {
		t.Error("definition of a nil module should be nil")
	}
}
