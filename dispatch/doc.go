// Package dispatch provides the synchronization context that marshals
// work from arbitrary goroutines onto the single goroutine owning an
// embedded environment.
//
// It is built on the platform's thread-safe function primitive,
// created unreferenced so its mere existence does not keep the host
// process alive; explicit async scopes do. Post schedules without
// reporting the outcome, Send blocks until completion and re-raises
// failures on the caller, RunAsync returns a completion channel.
// Disposal drops not-yet-executed work without running it and releases
// blocked senders.
package dispatch
