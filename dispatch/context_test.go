package dispatch

import (
	goerrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/napigo/napigo"
	"github.com/napigo/napigo/engine"
	"github.com/napigo/napigo/errors"
)

func newContext(t *testing.T) (*engine.Engine, *Context) {
	t.Helper()
	eng := engine.New()
	t.Cleanup(eng.Shutdown)

	var ctx *Context
	var err error
	if !eng.Do(func(env napigo.Env) {
		ctx, err = New(env, eng)
	}) {
		t.Fatalf("engine shut down before setup")
	}
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}
	t.Cleanup(ctx.Dispose)
	return eng, ctx
}

func kindOf(t *testing.T, err error) errors.Kind {
	t.Helper()
	var be *errors.Error
	if !goerrors.As(err, &be) {
		t.Fatalf("not a structured error: %v", err)
	}
	return be.Kind
}

func TestNewRequiresOwner(t *testing.T) {
	_, ctx := newContext(t)

	// The test goroutine does not own the environment.
	if _, err := New(ctx.Env(), nil); err == nil {
		t.Fatalf("New off the owning goroutine succeeded")
	} else if k := kindOf(t, err); k != errors.KindInvalidThread {
		t.Fatalf("kind = %s, want %s", k, errors.KindInvalidThread)
	}
}

func TestPostOrderFromOneGoroutine(t *testing.T) {
	_, ctx := newContext(t)

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			i := i
			ctx.Post(func() {
				mu.Lock()
				got = append(got, i)
				mu.Unlock()
			}, false)
		}
		// Send queues behind every post from this goroutine, so its
		// return means all fifty have run.
		if err := ctx.Send(func() error { return nil }); err != nil {
			t.Errorf("flush send: %v", err)
		}
	}()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 50 {
		t.Fatalf("ran %d actions, want 50", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("action %d ran at position %d", v, i)
		}
	}
}

func TestPostInlineOnOwner(t *testing.T) {
	eng, ctx := newContext(t)

	eng.Do(func(napigo.Env) {
		ran := false
		ctx.Post(func() { ran = true }, true)
		if !ran {
			t.Errorf("allowSync post on the owner did not run inline")
		}

		// A panic in an inline post must not unwind into the caller.
		ctx.Post(func() { panic("inline") }, true)
	})
}

func TestSendReturnsError(t *testing.T) {
	_, ctx := newContext(t)

	sentinel := goerrors.New("bridge failure")
	if err := ctx.Send(func() error { return sentinel }); !goerrors.Is(err, sentinel) {
		t.Fatalf("Send error = %v, want sentinel", err)
	}
}

func TestSendCapturesPanic(t *testing.T) {
	_, ctx := newContext(t)

	err := ctx.Send(func() error { panic("boom") })
	if err == nil {
		t.Fatalf("panicking send returned nil")
	}
	if k := kindOf(t, err); k != errors.KindPanic {
		t.Fatalf("kind = %s, want %s", k, errors.KindPanic)
	}
}

func TestSendInlineOnOwner(t *testing.T) {
	eng, ctx := newContext(t)

	sentinel := goerrors.New("inline failure")
	eng.Do(func(napigo.Env) {
		if !ctx.OnOwner() {
			t.Errorf("engine work is not on the owning goroutine")
		}
		if err := ctx.Send(func() error { return sentinel }); !goerrors.Is(err, sentinel) {
			t.Errorf("inline Send error = %v, want sentinel", err)
		}
	})
}

func TestRunAsync(t *testing.T) {
	_, ctx := newContext(t)

	sentinel := goerrors.New("async failure")
	if err := <-ctx.RunAsync(func() error { return sentinel }); !goerrors.Is(err, sentinel) {
		t.Fatalf("RunAsync error = %v, want sentinel", err)
	}
	if err := <-ctx.RunAsync(func() error { return nil }); err != nil {
		t.Fatalf("RunAsync: %v", err)
	}
}

func TestAsyncScopeLifecycle(t *testing.T) {
	eng, ctx := newContext(t)

	eng.Do(func(napigo.Env) {
		if n := eng.KeepAliveCount(); n != 0 {
			t.Errorf("keep-alive before any scope = %d, want 0", n)
		}

		if err := ctx.OpenAsyncScope(); err != nil {
			t.Errorf("first open: %v", err)
		}
		if err := ctx.OpenAsyncScope(); err != nil {
			t.Errorf("second open: %v", err)
		}
		// The native ref is boolean: two scopes, one keep-alive.
		if n := eng.KeepAliveCount(); n != 1 {
			t.Errorf("keep-alive with open scopes = %d, want 1", n)
		}
		if n := ctx.AsyncScopes(); n != 2 {
			t.Errorf("AsyncScopes = %d, want 2", n)
		}

		if err := ctx.CloseAsyncScope(); err != nil {
			t.Errorf("first close: %v", err)
		}
		if err := ctx.CloseAsyncScope(); err != nil {
			t.Errorf("second close: %v", err)
		}
		if n := eng.KeepAliveCount(); n != 0 {
			t.Errorf("keep-alive after close = %d, want 0", n)
		}

		err := ctx.CloseAsyncScope()
		if err == nil {
			t.Errorf("unbalanced close succeeded")
		} else if k := kindOf(t, err); k != errors.KindImbalancedScope {
			t.Errorf("kind = %s, want %s", k, errors.KindImbalancedScope)
		}
	})
}

func TestAsyncScopeOffOwnerRejected(t *testing.T) {
	_, ctx := newContext(t)

	if err := ctx.OpenAsyncScope(); err == nil {
		t.Fatalf("OpenAsyncScope off the owner succeeded")
	} else if k := kindOf(t, err); k != errors.KindInvalidThread {
		t.Fatalf("kind = %s, want %s", k, errors.KindInvalidThread)
	}
}

func TestScopedAsyncWork(t *testing.T) {
	eng, ctx := newContext(t)

	sentinel := goerrors.New("work failure")
	eng.Do(func(napigo.Env) {
		err := ctx.ScopedAsyncWork(func() error {
			if n := ctx.AsyncScopes(); n != 1 {
				t.Errorf("AsyncScopes inside work = %d, want 1", n)
			}
			return sentinel
		})
		if !goerrors.Is(err, sentinel) {
			t.Errorf("ScopedAsyncWork error = %v, want sentinel", err)
		}
		if n := ctx.AsyncScopes(); n != 0 {
			t.Errorf("AsyncScopes after work = %d, want 0", n)
		}
	})
}

func TestDisposeReleasesBlockedSend(t *testing.T) {
	eng, ctx := newContext(t)

	// Park the owner so the sent action stays queued.
	gate := make(chan struct{})
	started := make(chan struct{})
	go eng.Do(func(napigo.Env) {
		close(started)
		<-gate
	})
	<-started

	var ran atomic.Bool
	sendDone := make(chan error, 1)
	go func() {
		sendDone <- ctx.Send(func() error {
			ran.Store(true)
			return nil
		})
	}()

	// Let the send enqueue before tearing down.
	time.Sleep(50 * time.Millisecond)
	ctx.Dispose()

	if err := <-sendDone; err != nil {
		t.Fatalf("blocked Send after dispose = %v, want nil", err)
	}

	close(gate)
	eng.Do(func(napigo.Env) {})
	if ran.Load() {
		t.Fatalf("queued action ran after dispose")
	}
}

func TestDisposedContextDropsWork(t *testing.T) {
	eng, ctx := newContext(t)
	ctx.Dispose()
	ctx.Dispose() // idempotent

	if !ctx.Disposed() {
		t.Fatalf("Disposed = false after Dispose")
	}

	var ran atomic.Bool
	ctx.Post(func() { ran.Store(true) }, false)
	if err := ctx.Send(func() error { ran.Store(true); return goerrors.New("x") }); err != nil {
		t.Fatalf("Send after dispose = %v, want nil", err)
	}
	if err := <-ctx.RunAsync(func() error { ran.Store(true); return goerrors.New("x") }); err != nil {
		t.Fatalf("RunAsync after dispose = %v, want nil", err)
	}

	eng.Do(func(napigo.Env) {})
	if ran.Load() {
		t.Fatalf("work ran on a disposed context")
	}

	if err := ctx.OpenAsyncScope(); err == nil {
		t.Fatalf("OpenAsyncScope after dispose succeeded")
	} else if k := kindOf(t, err); k != errors.KindDisposed {
		t.Fatalf("kind = %s, want %s", k, errors.KindDisposed)
	}
}
