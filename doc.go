// Package wasmhost is a minimal host environment for core WebAssembly modules
// running on wazero.
//
// The host supplies functions and linear memories to a guest under
// (namespace, name) keys, composes several import sources into one resolver
// and marshals every call into host code through a boxed 64-bit calling
// convention.
//
// # Architecture Overview
//
//	wasmhost/            Root package with the Memory and Allocator interfaces
//	├── errors/          Structured error types shared by every layer
//	├── memory/          Bounds-checked linear memory accessors and allocator
//	├── value/           Tagged WASM values and the boxed slot convention
//	├── imports/         Import declarations, trampolines and ambient memory
//	├── resolve/         Resolver interface and override chaining
//	├── wasi/            WASI preview1 import set as a resolver
//	├── linker/          Publishes a resolver into wazero and instantiates guests
//	├── manifest/        YAML import manifests
//	└── cmd/run/         Command line runner
//
// # Quick Start
//
//	rt := wazero.NewRuntime(ctx)
//	defer rt.Close(ctx)
//
//	table, err := imports.NewBuilder(rt, imports.DefaultOptions()).Build(ctx, []imports.Declaration{
//	    imports.Func{
//	        Namespace: "env",
//	        Name:      "add",
//	        Params:    []value.ValueType{value.I32, value.I32},
//	        Results:   []value.ValueType{value.I32},
//	        Callback: func(ctx context.Context, args []value.Boxed) ([]value.Boxed, error) {
//	            return []value.Boxed{value.BoxI32(args[0].I32() + args[1].I32())}, nil
//	        },
//	    },
//	    imports.Memory{Namespace: "env", Name: "memory", MinPages: 1},
//	})
//
//	compiled, err := rt.CompileModule(ctx, wasmBytes)
//	inst, err := linker.New(rt, linker.DefaultOptions()).Instantiate(ctx, compiled, table, nil)
//	defer inst.Close(ctx)
//
//	results, err := inst.Call(ctx, "run", value.Int32(7))
//
// # Memory Model
//
// WASM linear memory can only grow, never shrink. Observing a smaller memory
// than before is reported as an error rather than tolerated.
//
// # Thread Safety
//
// Tables and resolvers are read-only after construction and safe for
// concurrent lookups. Linear memory accessors are not synchronized: a memory
// belongs to the guest instance executing on the calling goroutine.
package wasmhost
