package engine

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/napigo/napigo"
	"github.com/napigo/napigo/internal/goid"
	"github.com/napigo/napigo/scope"
)

// envCounter hands out process-unique environment handles.
var envCounter atomic.Uintptr

// Config holds configuration for engine creation
type Config struct {
	// QueueHint pre-sizes the dispatch queue.
	QueueHint int

	// GCStress runs a collection cycle after every executed queue
	// item, surfacing premature-collection bugs that would otherwise
	// only show up under real heap pressure.
	GCStress bool
}

// Engine is an in-memory embedded runtime implementing napigo.Platform.
// One goroutine (locked to its OS thread) owns the environment and
// drains the dispatch queue; every Env-taking capability call must run
// on it. The engine exists so the bridge is exercisable end to end
// without a native embedding.
type Engine struct {
	env   napigo.Env
	owner atomic.Uint64
	cfg   Config

	// Heap state, touched only on the owning goroutine.
	values    map[napigo.Value]*valueSlot
	nextValue uintptr
	scopes    []*handleScope
	refs      map[napigo.Ref]*refEntry
	nextRef   uintptr
	infos     map[napigo.CallbackInfo]*napigo.CallbackDetails
	nextInfo  uintptr
	global    *cell
	modules   map[string]*cell
	tracked   map[*cell]struct{}
	pending   *cell
	undefined *cell
	null      *cell

	errmu     sync.Mutex
	lastError napigo.ErrorInfo

	qmu      sync.Mutex
	qcond    *sync.Cond
	queue    []workItem
	tsfns    map[napigo.ThreadsafeFunction]*tsfnEntry
	nextTSFN uintptr
	shutdown bool

	keepAlive atomic.Int32

	ready chan struct{}
	done  chan struct{}
	dead  atomic.Bool
}

type workItem struct {
	fn   func() // direct work; nil for thread-safe function items
	tsfn napigo.ThreadsafeFunction
	data any
}

// New creates an engine and starts its owner goroutine.
func New() *Engine {
	return NewWithConfig(nil)
}

// NewWithConfig creates an engine with custom configuration.
func NewWithConfig(cfg *Config) *Engine {
	e := &Engine{
		env:     napigo.Env(envCounter.Add(1)),
		values:  make(map[napigo.Value]*valueSlot),
		refs:    make(map[napigo.Ref]*refEntry),
		infos:   make(map[napigo.CallbackInfo]*napigo.CallbackDetails),
		modules: make(map[string]*cell),
		tracked: make(map[*cell]struct{}),
		tsfns:   make(map[napigo.ThreadsafeFunction]*tsfnEntry),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cfg != nil {
		e.cfg = *cfg
	}
	e.qcond = sync.NewCond(&e.qmu)
	if e.cfg.QueueHint > 0 {
		e.queue = make([]workItem, 0, e.cfg.QueueHint)
	}
	go e.loop()
	<-e.ready
	return e
}

// Env returns the environment handle this engine owns.
func (e *Engine) Env() napigo.Env { return e.env }

// KeepAliveCount returns the number of referenced thread-safe
// functions, the engine's stand-in for the host's keep-alive count.
func (e *Engine) KeepAliveCount() int { return int(e.keepAlive.Load()) }

// loop is the owner goroutine: it holds the root scope and drains the
// dispatch queue until shutdown.
func (e *Engine) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	e.owner.Store(goid.Current())
	e.global = newObjectCell()
	e.undefined = &cell{kind: napigo.KindUndefined}
	e.null = &cell{kind: napigo.KindNull}
	e.scopes = []*handleScope{{}}

	s := scope.Enter(e.env, e)
	close(e.ready)

	for {
		item, ok := e.next()
		if !ok {
			break
		}
		e.execute(item)
		if e.cfg.GCStress {
			e.collect()
		}
	}

	e.teardown()
	s.Close()
	close(e.done)
}

func (e *Engine) next() (workItem, bool) {
	e.qmu.Lock()
	defer e.qmu.Unlock()
	for len(e.queue) == 0 && !e.shutdown {
		e.qcond.Wait()
	}
	if e.shutdown {
		// Pending work posted before shutdown is dropped, not executed.
		e.queue = nil
		return workItem{}, false
	}
	item := e.queue[0]
	e.queue = e.queue[1:]
	return item, true
}

func (e *Engine) execute(item workItem) {
	if item.fn != nil {
		item.fn()
		return
	}

	e.qmu.Lock()
	entry := e.tsfns[item.tsfn]
	if entry == nil || entry.aborted {
		e.qmu.Unlock()
		return
	}
	entry.pending--
	handler := entry.handler
	e.qcond.Broadcast()
	e.qmu.Unlock()

	if handler != nil {
		handler(e.env, item.data)
	}
}

// Do runs fn on the owning goroutine and waits for it. It is the
// bootstrap entry point (module initialization, tests); it runs inline
// when already on the owner. Returns false if the engine shut down
// before fn could run.
func (e *Engine) Do(fn func(env napigo.Env)) bool {
	if e.onOwner() {
		fn(e.env)
		return true
	}

	done := make(chan struct{})
	e.qmu.Lock()
	if e.shutdown {
		e.qmu.Unlock()
		return false
	}
	e.queue = append(e.queue, workItem{fn: func() {
		defer close(done)
		fn(e.env)
	}})
	e.qcond.Broadcast()
	e.qmu.Unlock()

	select {
	case <-done:
		return true
	case <-e.done:
		return false
	}
}

// AddModule registers exports under name for LoadModule resolution.
// Owner-goroutine-only.
func (e *Engine) AddModule(name string, exports napigo.Value) napigo.Status {
	if st := e.checkEnv(e.env); !st.OK() {
		return st
	}
	c, ok := e.cellOf(exports)
	if !ok {
		return e.fail(napigo.StatusInvalidArg, "exports handle is not valid in any open scope")
	}
	e.modules[name] = c
	return napigo.StatusOK
}

// Shutdown stops the owner goroutine, drops all queued work, and
// invalidates the environment. Idempotent.
func (e *Engine) Shutdown() {
	if e.dead.Swap(true) {
		<-e.done
		return
	}
	e.qmu.Lock()
	e.shutdown = true
	e.qcond.Broadcast()
	e.qmu.Unlock()
	<-e.done
}

func (e *Engine) teardown() {
	// Best-effort: run wrap and external finalizers for everything
	// still reachable, then thread-safe function finalizers.
	e.collectAll()

	e.qmu.Lock()
	entries := make([]*tsfnEntry, 0, len(e.tsfns))
	for _, entry := range e.tsfns {
		entries = append(entries, entry)
	}
	e.tsfns = map[napigo.ThreadsafeFunction]*tsfnEntry{}
	e.qmu.Unlock()

	for _, entry := range entries {
		if entry.refed {
			e.keepAlive.Add(-1)
		}
		if entry.finalize != nil {
			entry.finalize(nil)
		}
	}

	e.values = nil
	e.refs = nil
	e.infos = nil
	e.modules = nil
	e.tracked = nil
	e.global = nil
	e.pending = nil
}

func (e *Engine) onOwner() bool {
	return goid.Current() == e.owner.Load()
}

// checkEnv validates the handle, liveness, and goroutine affinity
// shared by every Env-taking call.
func (e *Engine) checkEnv(env napigo.Env) napigo.Status {
	if env != e.env {
		return e.fail(napigo.StatusInvalidArg, "unknown environment handle")
	}
	if e.dead.Load() {
		return e.fail(napigo.StatusInvalidArg, "environment has shut down")
	}
	if !e.onOwner() {
		return e.fail(napigo.StatusGenericFailure, "call from a goroutine that does not own the environment")
	}
	return napigo.StatusOK
}

func (e *Engine) fail(status napigo.Status, message string) napigo.Status {
	e.errmu.Lock()
	e.lastError = napigo.ErrorInfo{Message: message, Status: status}
	e.errmu.Unlock()
	return status
}

// GetLastErrorInfo implements napigo.Platform.
func (e *Engine) GetLastErrorInfo(env napigo.Env) napigo.ErrorInfo {
	e.errmu.Lock()
	defer e.errmu.Unlock()
	return e.lastError
}
