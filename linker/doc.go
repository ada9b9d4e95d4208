// Package linker publishes a resolver into a wazero runtime and instantiates
// a core guest module against it.
//
// # Publishing
//
// wazero resolves imports by module name, so for every namespace a guest
// imports from, the linker instantiates a module named exactly like that
// namespace. It re-exports:
//
//   - host functions, from a hidden host module holding their trampolines
//   - functions of already instantiated modules, such as the WASI host module
//   - one memory, from the hidden module that defines it
//
// A namespace can be bound by one live Instance at a time.
//
// # Import Resolution
//
//  1. Every function and memory import of the guest is resolved by
//     (namespace, name)
//  2. Function signatures must match the guest's import exactly
//  3. Unresolved imports fail with a MissingImportsError listing all of them,
//     unless Options.TrapUnresolved stubs functions with a trap
//
// # Example
//
//	table, _ := imports.NewBuilder(rt, imports.DefaultOptions()).Build(ctx, decls)
//	l := linker.New(rt, linker.DefaultOptions())
//	inst, _ := l.Instantiate(ctx, compiled, table, nil)
//	defer inst.Close(ctx)
//	results, _ := inst.Call(ctx, "run", value.Int32(7))
//
// # Thread Safety
//
// Linker is safe for concurrent use. Instance is NOT safe for concurrent use.
package linker
