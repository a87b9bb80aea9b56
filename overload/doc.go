// Package overload selects the correct callable among a group of
// candidate signatures given a dynamically-typed argument list
// arriving from the embedded runtime.
//
// Resolution is a pipeline of pure filter stages over an immutable
// candidate set: arity, dynamic-kind compatibility, numeric
// specificity (runtime introspection of the value's integerness,
// sign, and bit-width fit), then object specificity (assignability
// partial order with a handful of fixed special cases). Each stage
// either resolves to exactly one candidate or narrows the set; a
// failing stage produces a distinct, position-aware diagnostic, and
// irreducible ties fail as ambiguous rather than silently picking a
// candidate.
package overload
