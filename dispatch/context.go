package dispatch

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/napigo/napigo"
	"github.com/napigo/napigo/errors"
	"github.com/napigo/napigo/internal/goid"
	"github.com/napigo/napigo/scope"
)

// postRetries bounds the nonblocking re-enqueue attempts when the
// native queue reports full before the item is dropped.
const postRetries = 3

// Context is the thread-safe call bridge for one environment: the only
// sanctioned way for a goroutine that does not own the environment to
// cause work to run on it.
//
// Actions posted by a single goroutine execute FIFO; no ordering holds
// between actions posted by different goroutines. After Dispose, all
// scheduling requests are silently dropped.
type Context struct {
	platform    napigo.Platform
	env         napigo.Env
	tsfn        napigo.ThreadsafeFunction
	owner       uint64
	disposed    atomic.Bool
	disposedCh  chan struct{}
	asyncScopes atomic.Int32
}

// New creates the synchronization context for env. It must be called
// on the goroutine that owns the environment, inside an active scope.
// The underlying thread-safe function is created unreferenced, so the
// context's existence alone does not keep the host process alive; only
// open async scopes do.
func New(env napigo.Env, platform napigo.Platform) (*Context, error) {
	if !scope.OwnsEnv(env) {
		return nil, errors.InvalidThread(errors.StageDispatch, "dispatch.New")
	}

	c := &Context{
		platform:   platform,
		env:        env,
		owner:      goid.Current(),
		disposedCh: make(chan struct{}),
	}

	tsfn, status := platform.CreateThreadsafeFunction(env, 0, 1, c.drain, nil)
	if !status.OK() {
		return nil, statusErr(env, platform, status)
	}
	c.tsfn = tsfn

	if status := platform.UnrefThreadsafeFunction(env, tsfn); !status.OK() {
		platform.ReleaseThreadsafeFunction(tsfn, true)
		return nil, statusErr(env, platform, status)
	}
	return c, nil
}

// drain is the trampoline executed on the owning goroutine for every
// dequeued item. It never lets a panic unwind into the native loop.
func (c *Context) drain(env napigo.Env, data any) {
	fn, ok := data.(func())
	if !ok {
		return
	}
	if c.disposed.Load() {
		return
	}

	s := scope.Enter(env, c.platform)
	defer s.Close()
	defer func() {
		if p := recover(); p != nil {
			Logger().Error("posted action panicked", zap.Any("panic", p))
		}
	}()
	fn()
}

// Env returns the environment this context dispatches to.
func (c *Context) Env() napigo.Env { return c.env }

// OnOwner reports whether the calling goroutine owns the environment.
func (c *Context) OnOwner() bool { return goid.Current() == c.owner }

// Disposed reports whether the context has been disposed.
func (c *Context) Disposed() bool { return c.disposed.Load() }

// Post schedules fn to run on the owning goroutine and returns
// immediately; the action's outcome is not reported. When allowSync is
// set and the caller already owns the environment, fn runs inline.
// After disposal Post is a silent no-op.
func (c *Context) Post(fn func(), allowSync bool) {
	if c.disposed.Load() {
		return
	}
	if allowSync && c.OnOwner() {
		defer func() {
			if p := recover(); p != nil {
				Logger().Error("posted action panicked", zap.Any("panic", p))
			}
		}()
		fn()
		return
	}

	for attempt := 0; ; attempt++ {
		status := c.platform.CallThreadsafeFunction(c.tsfn, fn, napigo.NonBlocking)
		switch status {
		case napigo.StatusOK:
			return
		case napigo.StatusQueueFull:
			if attempt < postRetries {
				continue
			}
			Logger().Warn("dropping posted action: queue full")
			return
		case napigo.StatusClosing:
			return
		default:
			Logger().Warn("dropping posted action", zap.String("status", status.String()))
			return
		}
	}
}

// Send schedules fn on the owning goroutine and blocks until it has
// completed, re-raising its error (or captured panic) on the calling
// goroutine. On the owning goroutine fn runs inline. If the context is
// or becomes disposed before fn runs, Send returns nil without running it.
func (c *Context) Send(fn func() error) error {
	if c.disposed.Load() {
		return nil
	}
	if c.OnOwner() {
		return runCaptured(fn)
	}

	done := make(chan error, 1)
	status := c.platform.CallThreadsafeFunction(c.tsfn, func() {
		done <- runCaptured(fn)
	}, napigo.Blocking)
	switch status {
	case napigo.StatusOK:
	case napigo.StatusClosing:
		return nil
	default:
		return c.callErr(status)
	}

	select {
	case err := <-done:
		return err
	case <-c.disposedCh:
		return nil
	}
}

// RunAsync schedules fn on the owning goroutine without blocking and
// returns a channel that yields its result once it completes. Like
// Send, disposal before execution completes the result with nil.
func (c *Context) RunAsync(fn func() error) <-chan error {
	out := make(chan error, 1)
	if c.disposed.Load() {
		out <- nil
		return out
	}
	if c.OnOwner() {
		out <- runCaptured(fn)
		return out
	}

	inner := make(chan error, 1)
	status := c.platform.CallThreadsafeFunction(c.tsfn, func() {
		inner <- runCaptured(fn)
	}, napigo.Blocking)
	switch status {
	case napigo.StatusOK:
	case napigo.StatusClosing:
		out <- nil
		return out
	default:
		out <- c.callErr(status)
		return out
	}

	go func() {
		select {
		case err := <-inner:
			out <- err
		case <-c.disposedCh:
			out <- nil
		}
	}()
	return out
}

// OpenAsyncScope signals the host that asynchronous work is pending
// and the process should stay alive. Owner-goroutine-only; must be
// balanced by CloseAsyncScope.
func (c *Context) OpenAsyncScope() error {
	if c.disposed.Load() {
		return errors.Disposed(errors.StageDispatch, "synchronization context")
	}
	if !c.OnOwner() {
		return errors.InvalidThread(errors.StageDispatch, "OpenAsyncScope")
	}
	// The native ref is boolean (alive/not-alive); only the first open
	// flips it.
	if c.asyncScopes.Add(1) == 1 {
		if status := c.platform.RefThreadsafeFunction(c.env, c.tsfn); !status.OK() {
			c.asyncScopes.Add(-1)
			return statusErr(c.env, c.platform, status)
		}
	}
	return nil
}

// CloseAsyncScope releases one async scope.
func (c *Context) CloseAsyncScope() error {
	if c.disposed.Load() {
		return errors.Disposed(errors.StageDispatch, "synchronization context")
	}
	if !c.OnOwner() {
		return errors.InvalidThread(errors.StageDispatch, "CloseAsyncScope")
	}
	n := c.asyncScopes.Add(-1)
	if n < 0 {
		c.asyncScopes.Add(1)
		return errors.ImbalancedScope("CloseAsyncScope without a matching open")
	}
	if n == 0 {
		if status := c.platform.UnrefThreadsafeFunction(c.env, c.tsfn); !status.OK() {
			return statusErr(c.env, c.platform, status)
		}
	}
	return nil
}

// AsyncScopes returns the number of open async scopes.
func (c *Context) AsyncScopes() int {
	return int(c.asyncScopes.Load())
}

// ScopedAsyncWork opens an async scope, runs fn, and guarantees the
// scope is closed on every exit path, including error returns and
// panics.
func (c *Context) ScopedAsyncWork(fn func() error) error {
	if err := c.OpenAsyncScope(); err != nil {
		return err
	}
	defer c.CloseAsyncScope()
	return fn()
}

// Dispose tears down the context. Idempotent. Work already queued is
// dropped without executing; an action already in flight runs to
// completion. Blocked Send callers are released.
func (c *Context) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}
	close(c.disposedCh)
	if status := c.platform.ReleaseThreadsafeFunction(c.tsfn, true); !status.OK() {
		Logger().Warn("release thread-safe function failed",
			zap.String("status", status.String()))
	}
}

// runCaptured invokes fn, converting a panic into a structured error
// so it surfaces on the caller instead of crashing the owning
// goroutine.
func runCaptured(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &errors.Error{
				Stage:  errors.StageDispatch,
				Kind:   errors.KindPanic,
				Detail: fmt.Sprintf("action panicked: %v", p),
				Pos:    -1,
			}
		}
	}()
	return fn()
}

// callErr reports a true dispatch failure. The extended message is
// only fetched on the owning goroutine; GetLastErrorInfo takes an Env.
func (c *Context) callErr(status napigo.Status) error {
	message := ""
	if c.OnOwner() {
		message = c.platform.GetLastErrorInfo(c.env).Message
	}
	return errors.StatusFailure(errors.StageDispatch, status.String(), message)
}

func statusErr(env napigo.Env, platform napigo.Platform, status napigo.Status) error {
	info := platform.GetLastErrorInfo(env)
	return errors.StatusFailure(errors.StageDispatch, status.String(), info.Message)
}
