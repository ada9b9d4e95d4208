package imports

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"

	wasmhost "github.com/wippyai/wasm-host"
	"github.com/wippyai/wasm-host/memory"
)

var (
	currentMu  sync.RWMutex
	currentMem wasmhost.GrowableMemory
)

// CurrentMemory returns the memory created by the most recent memory
// declaration in any Build call, or nil if there has been none. Callbacks
// should prefer MemoryFromContext, which is scoped to the call.
func CurrentMemory() wasmhost.GrowableMemory {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return currentMem
}

func setCurrentMemory(m wasmhost.GrowableMemory) {
	currentMu.Lock()
	currentMem = m
	currentMu.Unlock()
}

type memoryKey struct{}

// WithMemory returns a context carrying mem for MemoryFromContext.
func WithMemory(ctx context.Context, mem wasmhost.GrowableMemory) context.Context {
	return context.WithValue(ctx, memoryKey{}, mem)
}

// MemoryFromContext returns the memory visible to the running host callback:
// the memory declared alongside the function, or else the calling module's
// memory. It returns nil when neither exists.
func MemoryFromContext(ctx context.Context) wasmhost.GrowableMemory {
	mem, _ := ctx.Value(memoryKey{}).(wasmhost.GrowableMemory)
	return mem
}

// callMemory picks the memory for one callback invocation.
func callMemory(bound wasmhost.GrowableMemory, caller api.Module) wasmhost.GrowableMemory {
	if bound != nil {
		return bound
	}
	if caller == nil {
		return nil
	}
	if m := caller.Memory(); m != nil {
		return memory.Wrap(m)
	}
	return nil
}
