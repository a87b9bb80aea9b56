// Package errors provides structured error types for the napigo bridge.
//
// Errors are categorized by Stage (which subsystem failed) and Kind
// (error category). The Error type carries the native status name when
// the failure came from a capability call, and the offending argument
// position for overload resolution diagnostics.
//
// Use the convenience constructors for common patterns:
//
//	err := errors.StatusFailure(errors.StageReference, "invalid_arg", info.Message)
//	err := errors.ArityMismatch(0, "1-2")
//	err := errors.InvalidThread(errors.StageReference, "Reference.Value")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
