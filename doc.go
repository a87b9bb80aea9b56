// Package napigo is a binding layer over a Node-API-style embedding
// surface, letting Go code define and consume values, objects,
// functions, and classes living inside an embedded runtime's heap.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	napigo/          Root package: typed handles, Status, ValueKind,
//	                 property descriptors, the Platform capability contract
//	├── scope/       Goroutine-local "current environment" scope stack
//	├── reference/   Strong/weak reference bridge over native references
//	├── hostctx/     Runtime context: class registry, wrapper cache, imports
//	├── dispatch/    Cross-goroutine synchronization context
//	├── overload/    Staged overload resolution engine
//	├── builder/     Declarative property/class/module builders
//	├── arena/       Pin arena for payloads attached to heap objects
//	├── engine/      In-memory reference engine implementing Platform
//	└── errors/      Structured error types for debugging
//
// # Threading Model
//
// Each environment is owned by exactly one goroutine. Every capability
// call taking an Env must run on that goroutine; the dispatch package
// is the only sanctioned way for other goroutines to schedule work
// onto it. The shared caches in hostctx are safe for concurrent
// mutation, but the handles they store are only usable on the owning
// goroutine.
//
// # Handle Lifetime
//
// A Value is only valid inside the handle scope that produced it.
// Anything stored past the current callback must be promoted to a
// reference.Reference, which pairs the native reference's lifetime
// with explicit disposal plus a finalizer safety net.
package napigo
