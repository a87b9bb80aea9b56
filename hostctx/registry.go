package hostctx

import (
	"sync"

	"github.com/napigo/napigo"
	"github.com/napigo/napigo/errors"
	"github.com/napigo/napigo/scope"
)

// contexts maps Env → *Context. Entries are added by New and removed
// by Dispose.
var contexts sync.Map

// For returns the context registered for env.
func For(env napigo.Env) (*Context, bool) {
	v, ok := contexts.Load(env)
	if !ok {
		return nil, false
	}
	return v.(*Context), true
}

// CurrentContext returns the context of the calling goroutine's
// current environment scope.
func CurrentContext() (*Context, error) {
	env, _, err := scope.CurrentEnv()
	if err != nil {
		return nil, err
	}
	c, ok := For(env)
	if !ok {
		return nil, errors.NotRegistered("context for current environment")
	}
	return c, nil
}
