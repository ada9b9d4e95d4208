package main

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	wasmhost "github.com/wippyai/wasm-host"
	"github.com/wippyai/wasm-host/errors"
	"github.com/wippyai/wasm-host/imports"
	"github.com/wippyai/wasm-host/manifest"
	"github.com/wippyai/wasm-host/memory"
	"github.com/wippyai/wasm-host/value"
)

// builtinHandlers returns the handlers a manifest may bind function imports
// to. malloc and free share one allocator per memory, with heaps starting at
// heapBase.
func builtinHandlers(heapBase uint32) manifest.Handlers {
	h := &heaps{base: heapBase, byMemory: make(map[any]*memory.Allocator)}
	return manifest.Handlers{
		"echo":   echoHandler,
		"log":    logHandler,
		"zero":   zeroHandler,
		"malloc": h.mallocHandler,
		"free":   h.freeHandler,
	}
}

func signature(imp manifest.Import, params, results []value.ValueType) error {
	if slices.Equal(imp.Params, params) && slices.Equal(imp.Results, results) {
		return nil
	}
	return errors.TypeMismatch(errors.PhaseConfig, []string{imp.Namespace, imp.Name},
		value.Signature(params, results), value.Signature(imp.Params, imp.Results))
}

// echo returns its arguments.
func echoHandler(imp manifest.Import) (imports.Callback, error) {
	if err := signature(imp, imp.Params, imp.Params); err != nil {
		return nil, err
	}
	return func(_ context.Context, args []value.Boxed) ([]value.Boxed, error) {
		return append([]value.Boxed(nil), args...), nil
	}, nil
}

// log writes its arguments to the logger.
func logHandler(imp manifest.Import) (imports.Callback, error) {
	if err := signature(imp, imp.Params, nil); err != nil {
		return nil, err
	}
	log := imports.Logger().Named("guest")
	types := imp.Params
	return func(_ context.Context, args []value.Boxed) ([]value.Boxed, error) {
		fields := make([]zap.Field, 0, len(args)+1)
		fields = append(fields, zap.String("import", imp.Namespace+"."+imp.Name))
		for i, a := range args {
			fields = append(fields, zap.Stringer(fmt.Sprintf("arg%d", i), boxedString{a, types[i]}))
		}
		log.Info("guest log", fields...)
		return nil, nil
	}, nil
}

type boxedString struct {
	b value.Boxed
	t value.ValueType
}

func (s boxedString) String() string {
	switch s.t {
	case value.I32:
		return fmt.Sprint(s.b.I32())
	case value.F32:
		return fmt.Sprint(s.b.F32())
	case value.F64:
		return fmt.Sprint(s.b.F64())
	default:
		return fmt.Sprint(s.b.I64())
	}
}

// zero ignores its arguments and returns zero for every result.
func zeroHandler(imp manifest.Import) (imports.Callback, error) {
	n := len(imp.Results)
	return func(context.Context, []value.Boxed) ([]value.Boxed, error) {
		return make([]value.Boxed, n), nil
	}, nil
}

type heaps struct {
	byMemory map[any]*memory.Allocator
	base     uint32
	mu       sync.Mutex
}

func (h *heaps) allocator(ctx context.Context) (*memory.Allocator, error) {
	mem := imports.MemoryFromContext(ctx)
	if mem == nil {
		return nil, errors.Other(errors.PhaseMemory, "no linear memory visible to allocator", nil)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	key := heapKey(mem)
	a, ok := h.byMemory[key]
	if !ok {
		a = memory.NewAllocator(mem, h.base)
		h.byMemory[key] = a
	}
	return a, nil
}

// heapKey identifies the buffer behind mem. Guest memories are rewrapped on
// every call, so they are keyed by the wazero memory itself.
func heapKey(mem wasmhost.GrowableMemory) any {
	if w, ok := mem.(*memory.Wrapper); ok {
		return w.Mem
	}
	return mem
}

var (
	ptrParams = []value.ValueType{value.I32}
	ptrResult = []value.ValueType{value.I32}
)

// malloc(size i32) -> i32
func (h *heaps) mallocHandler(imp manifest.Import) (imports.Callback, error) {
	if err := signature(imp, ptrParams, ptrResult); err != nil {
		return nil, err
	}
	return func(ctx context.Context, args []value.Boxed) ([]value.Boxed, error) {
		a, err := h.allocator(ctx)
		if err != nil {
			return nil, err
		}
		h.mu.Lock()
		ptr, err := a.Alloc(args[0].Uint32())
		h.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return []value.Boxed{value.BoxI32(int32(ptr))}, nil
	}, nil
}

// free(ptr i32)
func (h *heaps) freeHandler(imp manifest.Import) (imports.Callback, error) {
	if err := signature(imp, ptrParams, nil); err != nil {
		return nil, err
	}
	return func(ctx context.Context, args []value.Boxed) ([]value.Boxed, error) {
		a, err := h.allocator(ctx)
		if err != nil {
			return nil, err
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		return nil, a.Free(args[0].Uint32())
	}, nil
}
