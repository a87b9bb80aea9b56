// Package hostctx holds the per-environment runtime state of the
// bridge: class and struct registries, the object wrapper cache, the
// import cache, and the pin arena, tied together with the dispatcher
// that marshals work onto the environment's owning goroutine.
//
// The wrapper cache guarantees at most one live wrapper per host
// object: lookups are serialized per object, and the wrap finalizer
// installed by InitializeObjectWrapper unpins the object and evicts
// the entry when the embedded GC collects the wrapper.
package hostctx
