// Package arena pins host objects behind integer handles so they can
// cross the embedding boundary as opaque payloads (wrap/unwrap and
// external values).
//
// The arena is the accounting point for the cross-GC contract: every
// pinned object is freed exactly once, by the finalizer of the heap
// object carrying it, and the live count is observable so tests can
// assert no pin leaks and no double frees.
package arena
