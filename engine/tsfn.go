package engine

import (
	"github.com/napigo/napigo"
)

// tsfnEntry is one thread-safe function. All fields are guarded by
// e.qmu except refed, which only the owning goroutine touches.
type tsfnEntry struct {
	handler  napigo.TSFNHandler
	finalize napigo.Finalizer
	maxQueue int // 0 means unbounded
	threads  int
	pending  int // queued but not yet executed
	refed    bool
	closing  bool
	aborted  bool
}

func (e *Engine) CreateThreadsafeFunction(env napigo.Env, maxQueueSize, initialThreadCount int, handler napigo.TSFNHandler, finalize napigo.Finalizer) (napigo.ThreadsafeFunction, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	if handler == nil {
		return 0, e.fail(napigo.StatusInvalidArg, "handler must not be nil")
	}
	if initialThreadCount <= 0 {
		return 0, e.fail(napigo.StatusInvalidArg, "initial thread count must be positive")
	}

	e.qmu.Lock()
	e.nextTSFN++
	fn := napigo.ThreadsafeFunction(e.nextTSFN)
	e.tsfns[fn] = &tsfnEntry{
		handler:  handler,
		finalize: finalize,
		maxQueue: maxQueueSize,
		threads:  initialThreadCount,
		refed:    true,
	}
	e.qmu.Unlock()

	e.keepAlive.Add(1)
	return fn, napigo.StatusOK
}

// CallThreadsafeFunction queues data for the function's handler. It is
// callable from any goroutine. Blocking mode waits for queue space;
// calling it in blocking mode from the owning goroutine would starve
// the queue it is waiting on, so that combination is rejected.
func (e *Engine) CallThreadsafeFunction(fn napigo.ThreadsafeFunction, data any, mode napigo.CallMode) napigo.Status {
	e.qmu.Lock()
	defer e.qmu.Unlock()
	for {
		entry := e.tsfns[fn]
		if entry == nil || entry.closing || e.shutdown {
			return napigo.StatusClosing
		}
		if entry.maxQueue > 0 && entry.pending >= entry.maxQueue {
			if mode == napigo.NonBlocking {
				return napigo.StatusQueueFull
			}
			if e.onOwner() {
				return napigo.StatusWouldDeadlock
			}
			e.qcond.Wait()
			continue
		}
		entry.pending++
		e.queue = append(e.queue, workItem{tsfn: fn, data: data})
		e.qcond.Broadcast()
		return napigo.StatusOK
	}
}

func (e *Engine) RefThreadsafeFunction(env napigo.Env, fn napigo.ThreadsafeFunction) napigo.Status {
	if st := e.checkEnv(env); !st.OK() {
		return st
	}
	e.qmu.Lock()
	entry := e.tsfns[fn]
	closing := entry == nil || entry.closing
	e.qmu.Unlock()
	if closing {
		return napigo.StatusClosing
	}
	if !entry.refed {
		entry.refed = true
		e.keepAlive.Add(1)
	}
	return napigo.StatusOK
}

func (e *Engine) UnrefThreadsafeFunction(env napigo.Env, fn napigo.ThreadsafeFunction) napigo.Status {
	if st := e.checkEnv(env); !st.OK() {
		return st
	}
	e.qmu.Lock()
	entry := e.tsfns[fn]
	closing := entry == nil || entry.closing
	e.qmu.Unlock()
	if closing {
		return napigo.StatusClosing
	}
	if entry.refed {
		entry.refed = false
		e.keepAlive.Add(-1)
	}
	return napigo.StatusOK
}

func (e *Engine) AcquireThreadsafeFunction(fn napigo.ThreadsafeFunction) napigo.Status {
	e.qmu.Lock()
	defer e.qmu.Unlock()
	entry := e.tsfns[fn]
	if entry == nil || entry.closing {
		return napigo.StatusClosing
	}
	entry.threads++
	return napigo.StatusOK
}

// ReleaseThreadsafeFunction drops one acquisition. When the count
// reaches zero, or abort is set, the function closes: no further calls
// are accepted, and with abort the queued items are discarded instead
// of executed. The finalizer runs once, on the owning goroutine.
func (e *Engine) ReleaseThreadsafeFunction(fn napigo.ThreadsafeFunction, abort bool) napigo.Status {
	e.qmu.Lock()
	entry := e.tsfns[fn]
	if entry == nil {
		e.qmu.Unlock()
		return napigo.StatusInvalidArg
	}
	if entry.threads <= 0 {
		e.qmu.Unlock()
		return napigo.StatusInvalidArg
	}
	entry.threads--
	if abort {
		entry.aborted = true
	}
	finalizeNow := false
	if (abort || entry.threads == 0) && !entry.closing {
		entry.closing = true
		finalizeNow = true
		if abort {
			e.dropQueuedLocked(fn)
			entry.pending = 0
		}
	}
	e.qcond.Broadcast()
	e.qmu.Unlock()

	if finalizeNow {
		e.finalizeTSFN(fn, entry)
	}
	return napigo.StatusOK
}

// dropQueuedLocked removes every queued item belonging to fn. Caller
// holds e.qmu.
func (e *Engine) dropQueuedLocked(fn napigo.ThreadsafeFunction) {
	kept := e.queue[:0]
	for _, item := range e.queue {
		if item.fn == nil && item.tsfn == fn {
			continue
		}
		kept = append(kept, item)
	}
	e.queue = kept
}

// finalizeTSFN runs the entry's finalizer on the owning goroutine and
// removes it from the table. If the engine has already started
// shutting down, teardown finalizes whatever is left in the table.
func (e *Engine) finalizeTSFN(fn napigo.ThreadsafeFunction, entry *tsfnEntry) {
	run := func() {
		if entry.refed {
			entry.refed = false
			e.keepAlive.Add(-1)
		}
		if entry.finalize != nil {
			entry.finalize(nil)
		}
		e.qmu.Lock()
		delete(e.tsfns, fn)
		e.qmu.Unlock()
	}
	if e.onOwner() {
		run()
		return
	}
	e.qmu.Lock()
	if e.shutdown {
		e.qmu.Unlock()
		return
	}
	e.queue = append(e.queue, workItem{fn: run})
	e.qcond.Broadcast()
	e.qmu.Unlock()
}
