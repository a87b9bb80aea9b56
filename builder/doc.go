// Package builder is the declarative layer for exposing Go functions,
// classes, and modules to an embedded runtime.
//
// Every callback goes through one trampoline: it snapshots the
// call-site arguments, resolves the overload group, converts arguments
// to the selected candidate's Go types, invokes it by reflection, and
// converts the result back — wrapping registered host objects through
// the runtime context's wrapper cache. Panics and returned errors are
// translated into thrown exceptions by the engine; they never unwind
// into the native call frame.
package builder
