package hostctx

import (
	goerrors "errors"
	"reflect"
	"testing"

	"github.com/napigo/napigo"
	"github.com/napigo/napigo/engine"
	"github.com/napigo/napigo/errors"
)

type point struct {
	X, Y float64
}

type fixture struct {
	eng *engine.Engine
	ctx *Context
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	eng := engine.New()
	t.Cleanup(eng.Shutdown)

	f := &fixture{eng: eng}
	f.run(t, func(env napigo.Env, platform napigo.Platform) {
		ctx, err := New(env, platform, opts...)
		if err != nil {
			t.Fatalf("hostctx.New: %v", err)
		}
		f.ctx = ctx

		cls, st := platform.DefineClass(env, "Point", nil, nil, nil)
		if !st.OK() {
			t.Fatalf("DefineClass: %s", st)
		}
		if err := ctx.RegisterClass(reflect.TypeOf(&point{}), cls); err != nil {
			t.Fatalf("RegisterClass: %v", err)
		}
	})
	t.Cleanup(func() { f.ctx.Dispose() })
	return f
}

func (f *fixture) run(t *testing.T, fn func(env napigo.Env, platform napigo.Platform)) {
	t.Helper()
	if !f.eng.Do(func(env napigo.Env) { fn(env, f.eng) }) {
		t.Fatalf("engine shut down before work could run")
	}
}

func TestWrapperIdentity(t *testing.T) {
	f := newFixture(t)
	obj := &point{X: 1, Y: 2}

	f.run(t, func(env napigo.Env, platform napigo.Platform) {
		w1, err := f.ctx.GetOrCreateObjectWrapper(obj)
		if err != nil {
			t.Fatalf("first wrapper: %v", err)
		}
		w2, err := f.ctx.GetOrCreateObjectWrapper(obj)
		if err != nil {
			t.Fatalf("second wrapper: %v", err)
		}
		same, st := platform.StrictEquals(env, w1, w2)
		if !st.OK() || !same {
			t.Fatalf("wrapper identity broken: same=%v status=%s", same, st)
		}
		if n := f.ctx.PinCount(); n != 1 {
			t.Fatalf("pin count = %d, want 1", n)
		}
	})
}

func TestWrapperDistinctPerObject(t *testing.T) {
	f := newFixture(t)
	a, b := &point{X: 1}, &point{X: 2}

	f.run(t, func(env napigo.Env, platform napigo.Platform) {
		wa, err := f.ctx.GetOrCreateObjectWrapper(a)
		if err != nil {
			t.Fatalf("wrapper a: %v", err)
		}
		wb, err := f.ctx.GetOrCreateObjectWrapper(b)
		if err != nil {
			t.Fatalf("wrapper b: %v", err)
		}
		if same, _ := platform.StrictEquals(env, wa, wb); same {
			t.Fatalf("distinct objects share a wrapper")
		}
		if n := f.ctx.PinCount(); n != 2 {
			t.Fatalf("pin count = %d, want 2", n)
		}
	})
}

func TestWrapperEvictionOnCollection(t *testing.T) {
	f := newFixture(t)
	obj := &point{X: 3}

	f.run(t, func(env napigo.Env, platform napigo.Platform) {
		sc, _ := platform.OpenHandleScope(env)
		if _, err := f.ctx.GetOrCreateObjectWrapper(obj); err != nil {
			t.Fatalf("wrapper: %v", err)
		}
		platform.CloseHandleScope(env, sc)

		if st := platform.RequestGarbageCollection(env); !st.OK() {
			t.Fatalf("gc: %s", st)
		}
		if n := f.ctx.PinCount(); n != 0 {
			t.Fatalf("pin count after collection = %d, want 0", n)
		}

		// A fresh request builds a new, valid wrapper.
		w, err := f.ctx.GetOrCreateObjectWrapper(obj)
		if err != nil {
			t.Fatalf("rebuild: %v", err)
		}
		if kind, _ := platform.ValueKindOf(env, w); kind != napigo.KindObject {
			t.Fatalf("rebuilt wrapper kind = %s", kind)
		}
		if n := f.ctx.PinCount(); n != 1 {
			t.Fatalf("pin count after rebuild = %d, want 1", n)
		}
	})
}

func TestUnregisteredTypeRejected(t *testing.T) {
	f := newFixture(t)
	type other struct{ v int }

	f.run(t, func(env napigo.Env, platform napigo.Platform) {
		_, err := f.ctx.GetOrCreateObjectWrapper(&other{v: 1})
		if !goerrors.Is(err, &errors.Error{Stage: errors.StageContext, Kind: errors.KindNotRegistered}) {
			t.Fatalf("error = %v, want not_registered", err)
		}
	})
}

func TestRegisterClassDuplicate(t *testing.T) {
	f := newFixture(t)

	f.run(t, func(env napigo.Env, platform napigo.Platform) {
		cls, _ := platform.DefineClass(env, "Point2", nil, nil, nil)
		err := f.ctx.RegisterClass(reflect.TypeOf(&point{}), cls)
		if !goerrors.Is(err, &errors.Error{Stage: errors.StageContext, Kind: errors.KindAlreadyRegistered}) {
			t.Fatalf("error = %v, want already_registered", err)
		}
	})
}

func TestInitializeObjectWrapperLostRace(t *testing.T) {
	f := newFixture(t)
	obj := &point{X: 4}

	f.run(t, func(env napigo.Env, platform napigo.Platform) {
		if _, err := f.ctx.GetOrCreateObjectWrapper(obj); err != nil {
			t.Fatalf("wrapper: %v", err)
		}
		// A second initializer arriving with its own freshly built
		// wrapper loses: the established wrapper stays canonical.
		late, st := platform.CreateObject(env)
		if !st.OK() {
			t.Fatalf("CreateObject: %s", st)
		}
		err := f.ctx.InitializeObjectWrapper(late, obj)
		if !goerrors.Is(err, &errors.Error{Stage: errors.StageContext, Kind: errors.KindAlreadyRegistered}) {
			t.Fatalf("error = %v, want already_registered", err)
		}
		if n := f.ctx.PinCount(); n != 1 {
			t.Fatalf("lost race leaked a pin: count = %d", n)
		}
	})
}

func TestImportCaching(t *testing.T) {
	f := newFixture(t)

	f.run(t, func(env napigo.Env, platform napigo.Platform) {
		exports, _ := platform.CreateObject(env)
		v, _ := platform.CreateNumber(env, 7)
		platform.SetProperty(env, exports, "seven", v)
		if st := f.eng.AddModule("numbers", exports); !st.OK() {
			t.Fatalf("AddModule: %s", st)
		}

		first, err := f.ctx.Import("numbers", "seven")
		if err != nil {
			t.Fatalf("import: %v", err)
		}
		second, err := f.ctx.Import("numbers", "seven")
		if err != nil {
			t.Fatalf("cached import: %v", err)
		}
		same, st := platform.StrictEquals(env, first, second)
		if !st.OK() || !same {
			t.Fatalf("import cache returned a different value")
		}

		mod, err := f.ctx.Import("numbers", "")
		if err != nil {
			t.Fatalf("module import: %v", err)
		}
		if same, _ := platform.StrictEquals(env, mod, exports); !same {
			t.Fatalf("module import did not resolve the exports object")
		}

		if _, err := f.ctx.Import("", ""); !goerrors.Is(err,
			&errors.Error{Stage: errors.StageContext, Kind: errors.KindInvalidInput}) {
			t.Fatalf("empty import = %v, want invalid_input", err)
		}
	})
}

func TestImportFromGlobal(t *testing.T) {
	f := newFixture(t)

	f.run(t, func(env napigo.Env, platform napigo.Platform) {
		global, _ := platform.GetGlobal(env)
		v, _ := platform.CreateString(env, "live")
		platform.SetProperty(env, global, "status", v)

		got, err := f.ctx.Import("", "status")
		if err != nil {
			t.Fatalf("global import: %v", err)
		}
		if s, _ := platform.StringValue(env, got); s != "live" {
			t.Fatalf("global import = %q", s)
		}
	})
}

func TestDisposeIsIdempotentAndReportsLeaks(t *testing.T) {
	f := newFixture(t)
	obj := &point{X: 5}

	f.run(t, func(env napigo.Env, platform napigo.Platform) {
		if _, err := f.ctx.GetOrCreateObjectWrapper(obj); err != nil {
			t.Fatalf("wrapper: %v", err)
		}
	})

	var first error
	f.run(t, func(env napigo.Env, platform napigo.Platform) {
		first = f.ctx.Dispose()
	})
	// The live wrapper pin is reported as a leak, not silently dropped.
	if !goerrors.Is(first, &errors.Error{Stage: errors.StageContext, Kind: errors.KindLeak}) {
		t.Fatalf("dispose = %v, want leak report", first)
	}
	if err := f.ctx.Dispose(); err != nil {
		t.Fatalf("second dispose = %v, want nil", err)
	}

	f.run(t, func(env napigo.Env, platform napigo.Platform) {
		_, err := f.ctx.GetOrCreateObjectWrapper(obj)
		if !goerrors.Is(err, &errors.Error{Stage: errors.StageContext, Kind: errors.KindDisposed}) {
			t.Fatalf("use after dispose = %v, want disposed", err)
		}
	})
}

func TestRegistry(t *testing.T) {
	f := newFixture(t)

	got, ok := For(f.ctx.Env())
	if !ok || got != f.ctx {
		t.Fatalf("For did not return the registered context")
	}

	f.run(t, func(env napigo.Env, platform napigo.Platform) {
		c, err := CurrentContext()
		if err != nil || c != f.ctx {
			t.Fatalf("CurrentContext = %v, %v", c, err)
		}
	})

	if _, err := CurrentContext(); err == nil {
		t.Fatalf("CurrentContext off-scope must fail")
	}
}

func TestDebugPins(t *testing.T) {
	f := newFixture(t, WithDebugPins())
	obj := &point{X: 6}

	f.run(t, func(env napigo.Env, platform napigo.Platform) {
		if _, err := f.ctx.GetOrCreateObjectWrapper(obj); err != nil {
			t.Fatalf("wrapper: %v", err)
		}
		stacks := f.ctx.DebugPinStacks()
		if len(stacks) != 1 {
			t.Fatalf("debug stacks = %d, want 1", len(stacks))
		}
	})
}
