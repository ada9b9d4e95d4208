// Package wasm emits the small WASM binaries the host needs to publish
// imports into wazero: a module that defines one memory, a module that
// re-exports host functions and a memory under a namespace name, and a guest
// builder used by tests.
package wasm
