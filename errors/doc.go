// Package errors provides structured error types for the wasm-host library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the import path (namespace, name), the WASM value type
// involved and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMarshal, errors.KindTypeMismatch).
//		Path("env", "ext_storage_get").
//		Type("i64").
//		Detail("argument 0 tagged f32").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfBounds(errors.PhaseMemory, "read", ptr, 8, size)
//	err := errors.Other(errors.PhaseRegistry, "page count does not fit u32", cause)
//
// Linear memory failures use PhaseMemory with one of the memory kinds:
// KindOutOfBounds, KindRequestedAllocationTooLarge, KindAllocatorOutOfSpace,
// KindMemoryShrinked or KindOther.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
