package reference

import (
	goerrors "errors"
	"testing"

	"github.com/napigo/napigo"
	"github.com/napigo/napigo/dispatch"
	"github.com/napigo/napigo/engine"
	"github.com/napigo/napigo/errors"
)

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng := engine.New()
	t.Cleanup(eng.Shutdown)
	return eng
}

func run(t *testing.T, eng *engine.Engine, fn func(env napigo.Env)) {
	t.Helper()
	if !eng.Do(fn) {
		t.Fatalf("engine shut down before work could run")
	}
}

func kindOf(t *testing.T, err error) errors.Kind {
	t.Helper()
	var be *errors.Error
	if !goerrors.As(err, &be) {
		t.Fatalf("not a structured error: %v", err)
	}
	return be.Kind
}

func TestStrongSurvivesCollection(t *testing.T) {
	eng := newEngine(t)

	run(t, eng, func(env napigo.Env) {
		sc, _ := eng.OpenHandleScope(env)
		obj, st := eng.CreateObject(env)
		if !st.OK() {
			t.Fatalf("CreateObject: %s", st)
		}
		ref, err := NewStrong(obj)
		if err != nil {
			t.Fatalf("NewStrong: %v", err)
		}
		eng.CloseHandleScope(env, sc)

		if st := eng.RequestGarbageCollection(env); !st.OK() {
			t.Fatalf("gc: %s", st)
		}

		err = ref.Run(func(v napigo.Value) error {
			kind, st := eng.ValueKindOf(env, v)
			if !st.OK() || kind != napigo.KindObject {
				t.Errorf("resolved kind = %v status = %s", kind, st)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}

		if err := ref.Dispose(); err != nil {
			t.Fatalf("Dispose: %v", err)
		}
		if !ref.Disposed() {
			t.Fatalf("Disposed = false after Dispose")
		}
		if err := ref.Dispose(); err != nil {
			t.Fatalf("second Dispose: %v", err)
		}
	})
}

func TestWeakClearedByCollection(t *testing.T) {
	eng := newEngine(t)

	run(t, eng, func(env napigo.Env) {
		sc, _ := eng.OpenHandleScope(env)
		obj, st := eng.CreateObject(env)
		if !st.OK() {
			t.Fatalf("CreateObject: %s", st)
		}
		ref, err := NewWeak(obj)
		if err != nil {
			t.Fatalf("NewWeak: %v", err)
		}
		eng.CloseHandleScope(env, sc)

		if st := eng.RequestGarbageCollection(env); !st.OK() {
			t.Fatalf("gc: %s", st)
		}

		v, ok, err := ref.Value()
		if err != nil {
			t.Fatalf("Value after collection: %v", err)
		}
		if ok || v.IsValid() {
			t.Fatalf("weak target survived collection")
		}

		err = ref.Run(func(napigo.Value) error { return nil })
		if err == nil {
			t.Fatalf("Run on a collected weak reference succeeded")
		} else if k := kindOf(t, err); k != errors.KindCollected {
			t.Fatalf("kind = %s, want %s", k, errors.KindCollected)
		}

		if err := ref.Dispose(); err != nil {
			t.Fatalf("Dispose: %v", err)
		}
	})
}

func TestWeakHeldByScopeStaysLive(t *testing.T) {
	eng := newEngine(t)

	run(t, eng, func(env napigo.Env) {
		// The handle stays in the current scope, so the target is a
		// GC root and the weak reference keeps resolving.
		obj, st := eng.CreateObject(env)
		if !st.OK() {
			t.Fatalf("CreateObject: %s", st)
		}
		ref, err := NewWeak(obj)
		if err != nil {
			t.Fatalf("NewWeak: %v", err)
		}
		defer ref.Dispose()

		eng.RequestGarbageCollection(env)

		_, ok, err := ref.Value()
		if err != nil || !ok {
			t.Fatalf("rooted weak target: ok=%v err=%v", ok, err)
		}
	})
}

func TestRefUnrefCounts(t *testing.T) {
	eng := newEngine(t)

	run(t, eng, func(env napigo.Env) {
		obj, _ := eng.CreateObject(env)
		strong, err := NewStrong(obj)
		if err != nil {
			t.Fatalf("NewStrong: %v", err)
		}
		defer strong.Dispose()

		if n, err := strong.Ref(); err != nil || n != 2 {
			t.Fatalf("Ref = %d, %v; want 2, nil", n, err)
		}
		if n, err := strong.Unref(); err != nil || n != 1 {
			t.Fatalf("Unref = %d, %v; want 1, nil", n, err)
		}

		weak, err := NewWeak(obj)
		if err != nil {
			t.Fatalf("NewWeak: %v", err)
		}
		defer weak.Dispose()

		if _, err := weak.Ref(); err == nil {
			t.Fatalf("Ref on a weak reference succeeded")
		} else if k := kindOf(t, err); k != errors.KindInvalidInput {
			t.Fatalf("kind = %s, want %s", k, errors.KindInvalidInput)
		}
	})
}

func TestValueOffOwnerRejected(t *testing.T) {
	eng := newEngine(t)

	var ref *Reference
	run(t, eng, func(env napigo.Env) {
		obj, _ := eng.CreateObject(env)
		r, err := NewStrong(obj)
		if err != nil {
			t.Fatalf("NewStrong: %v", err)
		}
		ref = r
	})

	if _, _, err := ref.Value(); err == nil {
		t.Fatalf("Value off the owning goroutine succeeded")
	} else if k := kindOf(t, err); k != errors.KindInvalidThread {
		t.Fatalf("kind = %s, want %s", k, errors.KindInvalidThread)
	}

	run(t, eng, func(env napigo.Env) {
		if err := ref.Dispose(); err != nil {
			t.Fatalf("Dispose: %v", err)
		}
	})
}

func TestDisposeOffOwnerWithoutScheduler(t *testing.T) {
	eng := newEngine(t)

	var ref *Reference
	run(t, eng, func(env napigo.Env) {
		obj, _ := eng.CreateObject(env)
		r, err := NewStrong(obj)
		if err != nil {
			t.Fatalf("NewStrong: %v", err)
		}
		ref = r
	})

	err := ref.Dispose()
	if err == nil {
		t.Fatalf("off-goroutine Dispose without a scheduler succeeded")
	} else if k := kindOf(t, err); k != errors.KindInvalidThread {
		t.Fatalf("kind = %s, want %s", k, errors.KindInvalidThread)
	}
	if ref.Disposed() {
		t.Fatalf("rejected Dispose left the reference marked disposed")
	}

	// An on-goroutine Dispose still works after the rejection.
	run(t, eng, func(env napigo.Env) {
		if err := ref.Dispose(); err != nil {
			t.Fatalf("owner Dispose: %v", err)
		}
	})
}

func TestDisposeOffOwnerWithScheduler(t *testing.T) {
	eng := newEngine(t)

	var ctx *dispatch.Context
	var ref *Reference
	run(t, eng, func(env napigo.Env) {
		c, err := dispatch.New(env, eng)
		if err != nil {
			t.Fatalf("dispatch.New: %v", err)
		}
		ctx = c

		obj, _ := eng.CreateObject(env)
		ref, err = NewStrong(obj, WithScheduler(ctx))
		if err != nil {
			t.Fatalf("NewStrong: %v", err)
		}
	})
	t.Cleanup(ctx.Dispose)

	if err := ref.Dispose(); err != nil {
		t.Fatalf("scheduled Dispose: %v", err)
	}
	if !ref.Disposed() {
		t.Fatalf("Disposed = false after scheduled Dispose")
	}

	// Flush the marshalled delete through the dispatcher.
	if err := ctx.Send(func() error { return nil }); err != nil {
		t.Fatalf("flush: %v", err)
	}

	run(t, eng, func(env napigo.Env) {
		if _, _, err := ref.Value(); err == nil {
			t.Fatalf("Value on a disposed reference succeeded")
		} else if k := kindOf(t, err); k != errors.KindDisposed {
			t.Fatalf("kind = %s, want %s", k, errors.KindDisposed)
		}
	})
}
