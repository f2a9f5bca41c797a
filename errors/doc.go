// Package errors provides structured error types for the linker and the bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the platform and member path involved, plus a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseConfig, errors.KindAmbiguousMapping).
//		Platform("ios").
//		Path("ABC").
//		Detail("prefix maps to both %s and %s", "NsX", "NsY").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ProtocolViolation(id, "release below zero")
//	err := errors.NativeFailure(path, "division by zero")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
