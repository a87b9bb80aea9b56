package errors

import (
	"fmt"
	"strings"
)

// Stage indicates which bridge subsystem the error occurred in
type Stage string

const (
	StageReference Stage = "reference" // native reference lifecycle
	StageContext   Stage = "context"   // runtime context registries
	StageDispatch  Stage = "dispatch"  // cross-goroutine scheduling
	StageOverload  Stage = "overload"  // overload resolution
	StageCallback  Stage = "callback"  // native-to-host callbacks
	StageScope     Stage = "scope"     // environment scope stack
	StageEngine    Stage = "engine"    // embedded engine operations
)

// Kind categorizes the error
type Kind string

const (
	KindStatusFailure     Kind = "status_failure"
	KindPendingException  Kind = "pending_exception"
	KindInvalidThread     Kind = "invalid_thread"
	KindNoScope           Kind = "no_scope"
	KindImbalancedScope   Kind = "imbalanced_scope"
	KindAlreadyRegistered Kind = "already_registered"
	KindNotRegistered     Kind = "not_registered"
	KindDisposed          Kind = "disposed"
	KindArityMismatch     Kind = "arity_mismatch"
	KindKindMismatch      Kind = "kind_mismatch"
	KindNumericMismatch   Kind = "numeric_mismatch"
	KindObjectMismatch    Kind = "object_mismatch"
	KindAmbiguous         Kind = "ambiguous"
	KindInvalidInput      Kind = "invalid_input"
	KindCollected         Kind = "collected"
	KindPanic             Kind = "panic"
	KindLeak              Kind = "leak"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Cause  error
	Stage  Stage
	Kind   Kind
	Status string // native status name, when the failure came from a capability call
	Detail string
	Pos    int // offending argument position for overload diagnostics, -1 otherwise
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Stage))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Status != "" {
		b.WriteString(": status ")
		b.WriteString(e.Status)
	}

	if e.Pos >= 0 {
		fmt.Fprintf(&b, " at argument %d", e.Pos)
	}

	if e.Detail != "" {
		b.WriteString(": ")
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
		return e.Stage == t.Stage && e.Kind == t.Kind
	}
	return false
}

// Convenience constructors for common error patterns

// StatusFailure wraps a non-OK native status with its extended message.
func StatusFailure(stage Stage, status, message string) *Error {
	return &Error{
		Stage:  stage,
		Kind:   KindStatusFailure,
		Status: status,
		Detail: message,
		Pos:    -1,
	}
}

// PendingException indicates an exception is already pending in the
// embedded heap and was retrieved instead of issuing further calls.
func PendingException(stage Stage, message string) *Error {
	return &Error{
		Stage:  stage,
		Kind:   KindPendingException,
		Detail: message,
		Pos:    -1,
	}
}

// InvalidThread indicates an operation ran on a goroutine that does
// not own the target environment.
func InvalidThread(stage Stage, op string) *Error {
	return &Error{
		Stage:  stage,
		Kind:   KindInvalidThread,
		Detail: fmt.Sprintf("%s requires the environment's owning goroutine", op),
		Pos:    -1,
	}
}

// NoScope indicates no environment scope is active on the calling goroutine.
func NoScope() *Error {
	return &Error{
		Stage:  StageScope,
		Kind:   KindNoScope,
		Detail: "no active environment scope on this goroutine",
		Pos:    -1,
	}
}

// ImbalancedScope indicates a scope was closed out of stack order.
func ImbalancedScope(detail string) *Error {
	return &Error{
		Stage:  StageScope,
		Kind:   KindImbalancedScope,
		Detail: detail,
		Pos:    -1,
	}
}

// AlreadyRegistered indicates a duplicate type registration.
func AlreadyRegistered(what string) *Error {
	return &Error{
		Stage:  StageContext,
		Kind:   KindAlreadyRegistered,
		Detail: fmt.Sprintf("%s is already registered", what),
		Pos:    -1,
	}
}

// NotRegistered indicates a lookup for a type that was never registered.
func NotRegistered(what string) *Error {
	return &Error{
		Stage:  StageContext,
		Kind:   KindNotRegistered,
		Detail: fmt.Sprintf("%s is not registered", what),
		Pos:    -1,
	}
}

// Disposed indicates use of an already-disposed object.
func Disposed(stage Stage, what string) *Error {
	return &Error{
		Stage:  stage,
		Kind:   KindDisposed,
		Detail: fmt.Sprintf("%s has been disposed", what),
		Pos:    -1,
	}
}

// ArityMismatch indicates no overload accepts the supplied argument count.
func ArityMismatch(argCount int, accepted string) *Error {
	return &Error{
		Stage:  StageOverload,
		Kind:   KindArityMismatch,
		Detail: fmt.Sprintf("no overload accepts %d argument(s); accepted counts: %s", argCount, accepted),
		Pos:    -1,
	}
}

// KindMismatch indicates no overload is compatible with an argument's
// dynamic kind.
func KindMismatch(pos int, kind string) *Error {
	return &Error{
		Stage:  StageOverload,
		Kind:   KindKindMismatch,
		Detail: fmt.Sprintf("no overload accepts a %s argument", kind),
		Pos:    pos,
	}
}

// NumericMismatch indicates no overload's numeric parameter can
// represent the argument's runtime value.
func NumericMismatch(pos int, value float64) *Error {
	return &Error{
		Stage:  StageOverload,
		Kind:   KindNumericMismatch,
		Detail: fmt.Sprintf("no numeric parameter type can represent %v", value),
		Pos:    pos,
	}
}

// ObjectMismatch indicates no overload's object parameter accepts the
// argument's underlying type.
func ObjectMismatch(pos int, typeName string) *Error {
	return &Error{
		Stage:  StageOverload,
		Kind:   KindObjectMismatch,
		Detail: fmt.Sprintf("no object parameter accepts %s", typeName),
		Pos:    pos,
	}
}

// Ambiguous indicates multiple overloads survive all narrowing stages.
func Ambiguous(pos int, count int) *Error {
	return &Error{
		Stage:  StageOverload,
		Kind:   KindAmbiguous,
		Detail: fmt.Sprintf("%d overloads remain after all narrowing stages", count),
		Pos:    pos,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(stage Stage, detail string) *Error {
	return &Error{
		Stage:  stage,
		Kind:   KindInvalidInput,
		Detail: detail,
		Pos:    -1,
	}
}

// Leak indicates a pin/reference accounting mismatch.
func Leak(detail string) *Error {
	return &Error{
		Stage:  StageContext,
		Kind:   KindLeak,
		Detail: detail,
		Pos:    -1,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(stage Stage, kind Kind, cause error, detail string) *Error {
	return &Error{
		Stage:  stage,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
		Pos:    -1,
	}
}
