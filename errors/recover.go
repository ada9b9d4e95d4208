package errors

import "fmt"

// Recover converts a value recovered from a panic into a KindHostPanic error.
// A panicking error is kept as the cause so errors.Is/As still reach it.
func Recover(phase Phase, path []string, r any) *Error {
	e := &Error{
		Phase:  phase,
		Kind:   KindHostPanic,
		Path:   path,
		Value:  r,
		Detail: fmt.Sprintf("panic: %v", r),
	}
	if err, ok := r.(error); ok {
		e.Cause = err
	}
	return e
}

// Guard runs fn and turns a panic inside it into a returned error, so a
// crashing callee always yields a result instead of unwinding the caller.
func Guard(phase Phase, path []string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Recover(phase, path, r)
		}
	}()
	return fn()
}
