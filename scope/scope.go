package scope

import (
	"sync"

	"github.com/napigo/napigo"
	"github.com/napigo/napigo/errors"
	"github.com/napigo/napigo/internal/goid"
)

// stacks maps a goroutine ID to its innermost live scope.
var stacks sync.Map

// Scope marks an environment as current for the goroutine that entered
// it. Scopes are strictly nested per goroutine: a scope must be closed
// before its parent, and on the goroutine that opened it.
type Scope struct {
	env       napigo.Env
	platform  napigo.Platform
	parent    *Scope
	goroutine uint64
	closed    bool
}

// Enter pushes a new scope for the calling goroutine and returns it.
// Callback trampolines enter a fresh scope for every native-to-host
// entry and close it on all exits.
func Enter(env napigo.Env, platform napigo.Platform) *Scope {
	id := goid.Current()
	var parent *Scope
	if v, ok := stacks.Load(id); ok {
		parent = v.(*Scope)
	}
	s := &Scope{
		env:       env,
		platform:  platform,
		parent:    parent,
		goroutine: id,
	}
	stacks.Store(id, s)
	return s
}

// Current returns the innermost live scope for the calling goroutine.
func Current() (*Scope, error) {
	v, ok := stacks.Load(goid.Current())
	if !ok {
		return nil, errors.NoScope()
	}
	return v.(*Scope), nil
}

// CurrentEnv is shorthand for Current().Env() plus the platform.
func CurrentEnv() (napigo.Env, napigo.Platform, error) {
	s, err := Current()
	if err != nil {
		return 0, nil, err
	}
	return s.env, s.platform, nil
}

// Close pops the scope, restoring its parent as current. Closing out
// of stack order, twice, or from another goroutine is a programmer
// error reported as an imbalanced-scope or invalid-thread failure.
func (s *Scope) Close() error {
	if s.closed {
		return errors.ImbalancedScope("scope already closed")
	}
	id := goid.Current()
	if id != s.goroutine {
		return errors.InvalidThread(errors.StageScope, "Scope.Close")
	}
	v, ok := stacks.Load(id)
	if !ok || v.(*Scope) != s {
		return errors.ImbalancedScope("closing a scope that is not innermost")
	}
	s.closed = true
	if s.parent != nil {
		stacks.Store(id, s.parent)
	} else {
		stacks.Delete(id)
	}
	return nil
}

// Env returns the environment this scope targets.
func (s *Scope) Env() napigo.Env { return s.env }

// Platform returns the capability surface for this scope's environment.
func (s *Scope) Platform() napigo.Platform { return s.platform }

// Goroutine returns the ID of the goroutine that entered the scope.
func (s *Scope) Goroutine() uint64 { return s.goroutine }

// OwnsEnv reports whether the calling goroutine's current scope
// targets env. Operations that touch the embedded heap use this as
// their affinity check.
func OwnsEnv(env napigo.Env) bool {
	v, ok := stacks.Load(goid.Current())
	if !ok {
		return false
	}
	return v.(*Scope).env == env
}
