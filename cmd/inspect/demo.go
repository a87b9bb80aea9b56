package main

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/napigo/napigo"
	"github.com/napigo/napigo/builder"
	"github.com/napigo/napigo/engine"
	"github.com/napigo/napigo/hostctx"
	"github.com/napigo/napigo/overload"
)

// counter is the demo host object exposed through the bridge: the TUI
// and one-shot mode hammer it from background goroutines to make the
// dispatch queue, pin arena, and keep-alive accounting visible.
type counter struct {
	mu sync.Mutex
	n  float64
}

func (c *counter) add(d float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n += d
	return c.n
}

func (c *counter) value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type bridgeStats struct {
	Count       float64
	Pins        int
	KeepAlive   int
	AsyncScopes int
}

// demoBridge wires a Counter class through the full stack: class
// registration, wrapper cache, dispatcher, and method dispatch.
type demoBridge struct {
	eng     *engine.Engine
	ctx     *hostctx.Context
	counter *counter
	wrapper napigo.Value // held in the engine's root scope
}

// newDemoBridge must run on the engine's owning goroutine.
func newDemoBridge(env napigo.Env, eng *engine.Engine) (*demoBridge, error) {
	ctx, err := hostctx.New(env, eng, hostctx.WithDebugPins())
	if err != nil {
		return nil, err
	}

	ctor, err := overload.NewGroup("Counter", &overload.Candidate{
		Fn: func() *counter { return &counter{} },
	})
	if err != nil {
		return nil, err
	}
	addGroup, err := overload.NewGroup("Counter.add", &overload.Candidate{
		Params: []overload.Param{{Type: reflect.TypeOf(float64(0))}},
		Fn:     func(c *counter, d float64) float64 { return c.add(d) },
	})
	if err != nil {
		return nil, err
	}

	cb := builder.NewClass(ctx, "Counter", reflect.TypeOf(&counter{})).
		Constructor(ctor).
		Method("add", addGroup).
		Getter("value", func(c *counter) float64 { return c.value() })
	if _, err := cb.Build(env); err != nil {
		return nil, err
	}

	b := &demoBridge{eng: eng, ctx: ctx, counter: &counter{}}
	b.wrapper, err = ctx.GetOrCreateObjectWrapper(b.counter)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// invokeAdd goes through the wrapper's method, not the host object
// directly, so every increment crosses the full bridge. Owner-only.
func (b *demoBridge) invokeAdd(env napigo.Env, delta float64) (float64, error) {
	platform := b.ctx.Platform()
	sc, st := platform.OpenHandleScope(env)
	if !st.OK() {
		return 0, fmt.Errorf("open scope: %s", st)
	}
	defer platform.CloseHandleScope(env, sc)

	m, st := platform.GetProperty(env, b.wrapper, "add")
	if !st.OK() {
		return 0, fmt.Errorf("get add: %s", st)
	}
	d, st := platform.CreateNumber(env, delta)
	if !st.OK() {
		return 0, fmt.Errorf("create number: %s", st)
	}
	out, st := platform.CallFunction(env, b.wrapper, m, []napigo.Value{d})
	if !st.OK() {
		return 0, fmt.Errorf("call add: %s (%s)", st, platform.GetLastErrorInfo(env).Message)
	}
	n, st := platform.NumberValue(env, out)
	if !st.OK() {
		return 0, fmt.Errorf("result: %s", st)
	}
	return n, nil
}

// postIncrements fires count posts from one background goroutine and
// reports completion on done.
func (b *demoBridge) postIncrements(count int, done *sync.WaitGroup) {
	d := b.ctx.Dispatcher()
	env := b.ctx.Env()
	go func() {
		for i := 0; i < count; i++ {
			d.Post(func() {
				defer done.Done()
				b.invokeAdd(env, 1)
			}, false)
		}
	}()
}

// sendAdd blocks the calling goroutine until the increment has run on
// the owner.
func (b *demoBridge) sendAdd(delta float64) (float64, error) {
	var out float64
	err := b.ctx.Dispatcher().Send(func() error {
		n, err := b.invokeAdd(b.ctx.Env(), delta)
		out = n
		return err
	})
	return out, err
}

func (b *demoBridge) collect() {
	b.eng.Do(func(env napigo.Env) {
		b.eng.RequestGarbageCollection(env)
	})
}

func (b *demoBridge) stats() bridgeStats {
	return bridgeStats{
		Count:       b.counter.value(),
		Pins:        b.ctx.PinCount(),
		KeepAlive:   b.eng.KeepAliveCount(),
		AsyncScopes: b.ctx.Dispatcher().AsyncScopes(),
	}
}

func (b *demoBridge) dispose() error {
	var err error
	b.eng.Do(func(napigo.Env) {
		err = b.ctx.Dispose()
	})
	return err
}
