// Package wasi supplies the system-interface import set for core modules.
//
// The functions themselves are wazero's wasi_snapshot_preview1 host module,
// instantiated under a hidden name. This package only decides which
// namespace a guest expects, turns a Config into the guest's
// wazero.ModuleConfig, and exposes the host module as a resolver so it can be
// chained with other import sources:
//
//	state, err := wasi.Config{ProgramName: "app", Args: []string{"-v"}}.Finalize()
//	object, err := state.ImportObject(ctx, rt, compiled)
//	r := resolve.Chain(object, table) // table entries override WASI
//
// The guest must be instantiated with state.ModuleConfig(), since WASI
// functions read arguments, environment and stdio from the calling module.
package wasi
