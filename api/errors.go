// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values shared by the dispatch packages.

package api

import "errors"

// Common errors used across the library.
var (
	ErrWouldBlock        = errors.New("operation would block")
	ErrNotSupported      = errors.New("operation not supported")
	ErrReactorClosed     = errors.New("reactor is closed")
	ErrAlreadyExists     = errors.New("resource already exists")
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrContractViolation marks panics raised for caller bugs (nil callback,
	// uninitialised queue, latch decremented past zero). Recovery wrappers
	// re-panic on it instead of swallowing.
	ErrContractViolation = errors.New("contract violation")
)

// IsContractViolation reports whether a recovered panic value signals a caller
// bug that must not be swallowed.
func IsContractViolation(r any) bool {
	err, ok := r.(error)
	return ok && errors.Is(err, ErrContractViolation)
}
