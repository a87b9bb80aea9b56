// Package engine provides an in-memory runtime implementing the
// napigo.Platform capability surface.
//
// The engine exists so the binding layers above it (scopes, references,
// dispatch, class building) can be exercised end to end without a
// native embedding. It models the parts of a real host that the
// bindings depend on: a single owning goroutine locked to its OS
// thread, a handle-scoped value table, persistent strong and weak
// references, object wrapping with finalizers, a pending-exception
// register, thread-safe function queues with keep-alive accounting,
// and an on-demand mark-and-sweep collector.
//
// All Env-taking methods must run on the owning goroutine; use Do to
// get there from the outside, or a dispatch.Context for ongoing
// traffic. CallThreadsafeFunction, AcquireThreadsafeFunction, and
// ReleaseThreadsafeFunction are callable from any goroutine.
package engine
