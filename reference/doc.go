// Package reference bridges native references and host object
// lifetimes. A Reference stabilizes a heap value past the current
// handle scope, with strong or weak semantics, and pairs the native
// reference's lifetime with explicit disposal plus a finalizer safety
// net.
//
// Resolution and count adjustments are owner-goroutine-only; disposal
// from other goroutines is marshalled through a Scheduler. A weak
// reference resolving to nothing after collection is an expected
// outcome, reported as an explicit empty result rather than an error.
package reference
