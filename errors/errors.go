package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseMemory   Phase = "memory"   // linear memory access and allocation
	PhaseMarshal  Phase = "marshal"  // WASM values to boxed slots and back
	PhaseRegistry Phase = "registry" // import declaration processing
	PhaseResolve  Phase = "resolve"  // import lookup
	PhaseHost     Phase = "host"     // host callback invocation
	PhaseLink     Phase = "link"     // publishing imports and instantiation
	PhaseWASI     Phase = "wasi"     // system-interface state and imports
	PhaseCall     Phase = "call"     // guest export invocation
	PhaseConfig   Phase = "config"   // manifests and options
)

// Kind categorizes the error
type Kind string

const (
	KindOutOfBounds                 Kind = "out_of_bounds"
	KindRequestedAllocationTooLarge Kind = "requested_allocation_too_large"
	KindAllocatorOutOfSpace         Kind = "allocator_out_of_space"
	KindMemoryShrinked              Kind = "memory_shrinked"
	KindOther                       Kind = "other"
	KindTypeMismatch                Kind = "type_mismatch"
	KindArityMismatch               Kind = "arity_mismatch"
	KindOverflow                    Kind = "overflow"
	KindInvalidInput                Kind = "invalid_input"
	KindDuplicate                   Kind = "duplicate"
	KindUnsupported                 Kind = "unsupported"
	KindHostFailure                 Kind = "host_failure"
	KindHostPanic                   Kind = "host_panic"
	KindMissingImport               Kind = "missing_import"
	KindNotFound                    Kind = "not_found"
	KindInstantiation               Kind = "instantiation"
	KindTrap                        Kind = "trap"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Type   string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Type != "" {
		b.WriteString(": type ")
		b.WriteString(e.Type)
	}

	if e.Detail != "" {
		if e.Type != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the import path, usually namespace and name
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the WASM value type name
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// OutOfBounds creates a linear memory bounds error for an access of length
// bytes at ptr against a memory of size bytes.
func OutOfBounds(phase Phase, op string, ptr, length, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("%s out of heap bounds: offset=%d, length=%d, size=%d", op, ptr, length, size),
		Value:  ptr,
	}
}

// AllocationTooLarge reports a request above the allowed maximum.
func AllocationTooLarge(phase Phase, requested, limit uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRequestedAllocationTooLarge,
		Detail: fmt.Sprintf("requested %d exceeds maximum %d", requested, limit),
		Value:  requested,
	}
}

// OutOfSpace reports an allocator that could not satisfy a request.
func OutOfSpace(phase Phase, requested uint32, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocatorOutOfSpace,
		Detail: fmt.Sprintf("no space left for %d bytes", requested),
		Value:  requested,
		Cause:  cause,
	}
}

// MemoryShrinked reports a memory observed smaller than before.
func MemoryShrinked(phase Phase, previous, current uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindMemoryShrinked,
		Detail: fmt.Sprintf("memory shrank from %d to %d bytes", previous, current),
		Value:  current,
	}
}

// Other is the catch-all for bridge-layer failures that have no dedicated kind.
func Other(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOther,
		Detail: detail,
		Cause:  cause,
	}
}

// TypeMismatch creates a value type mismatch error
func TypeMismatch(phase Phase, path []string, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Type:   want,
		Detail: fmt.Sprintf("got %s", got),
	}
}

// ArityMismatch creates a value count mismatch error
func ArityMismatch(phase Phase, path []string, what string, want, got int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindArityMismatch,
		Path:   path,
		Detail: fmt.Sprintf("%s: want %d values, got %d", what, want, got),
		Value:  got,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Type:   targetType,
		Detail: fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:  value,
	}
}

// Unsupported creates an unsupported feature error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotFound creates a not found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// HostFailure wraps an error returned by a host callback.
func HostFailure(namespace, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindHostFailure,
		Path:   []string{namespace, name},
		Detail: "host callback returned an error",
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingImport represents a single unresolved import
type MissingImport struct {
	Namespace string // e.g., "env"
	Name      string // e.g., "ext_storage_get_version_1"
	Kind      string // "func" or "memory"
}

// MissingImportsError is returned when linking fails due to unresolved imports
type MissingImportsError struct {
	Imports []MissingImport
}

func (e *MissingImportsError) Error() string {
	var b strings.Builder
	b.WriteString("[link] missing_import: ")
	for i, imp := range e.Imports {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(imp.Kind)
		b.WriteByte(' ')
		b.WriteString(imp.Namespace)
		b.WriteByte('.')
		b.WriteString(imp.Name)
	}
	return b.String()
}

// Is matches any *Error with PhaseLink and KindMissingImport.
func (e *MissingImportsError) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Phase == PhaseLink && t.Kind == KindMissingImport
	}
	_, ok := target.(*MissingImportsError)
	return ok
}
