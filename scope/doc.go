// Package scope tracks which environment is current for each
// goroutine, so handle operations can target the right environment
// without threading an Env through every call.
//
// Scopes form a strict per-goroutine stack. Violating stack discipline
// is detected and reported rather than silently corrupting state.
package scope
