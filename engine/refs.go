package engine

import (
	"github.com/napigo/napigo"
)

// refEntry is one persistent reference. A count of zero makes the
// reference weak: collect() clears target once nothing else reaches
// the cell, and GetReferenceValue then reports it collected.
type refEntry struct {
	target *cell
	count  uint32
}

func (e *Engine) CreateReference(env napigo.Env, v napigo.Value, initialRefCount uint32) (napigo.Ref, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	c, st := e.argCell(v)
	if !st.OK() {
		return 0, st
	}
	e.nextRef++
	ref := napigo.Ref(e.nextRef)
	e.refs[ref] = &refEntry{target: c, count: initialRefCount}
	return ref, napigo.StatusOK
}

func (e *Engine) refEntryOf(ref napigo.Ref) (*refEntry, napigo.Status) {
	entry, ok := e.refs[ref]
	if !ok {
		return nil, e.fail(napigo.StatusInvalidArg, "unknown reference handle")
	}
	return entry, napigo.StatusOK
}

func (e *Engine) ReferenceRef(env napigo.Env, ref napigo.Ref) (uint32, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	entry, st := e.refEntryOf(ref)
	if !st.OK() {
		return 0, st
	}
	if entry.count == 0 && entry.target == nil {
		return 0, e.fail(napigo.StatusGenericFailure, "cannot strengthen a collected weak reference")
	}
	entry.count++
	return entry.count, napigo.StatusOK
}

func (e *Engine) ReferenceUnref(env napigo.Env, ref napigo.Ref) (uint32, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	entry, st := e.refEntryOf(ref)
	if !st.OK() {
		return 0, st
	}
	if entry.count == 0 {
		return 0, e.fail(napigo.StatusGenericFailure, "reference count is already zero")
	}
	entry.count--
	return entry.count, napigo.StatusOK
}

func (e *Engine) GetReferenceValue(env napigo.Env, ref napigo.Ref) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	entry, st := e.refEntryOf(ref)
	if !st.OK() {
		return 0, st
	}
	if entry.target == nil {
		// Collected weak target: invalid value, successful status.
		return 0, napigo.StatusOK
	}
	return e.alloc(entry.target), napigo.StatusOK
}

func (e *Engine) DeleteReference(env napigo.Env, ref napigo.Ref) napigo.Status {
	if st := e.checkEnv(env); !st.OK() {
		return st
	}
	if _, ok := e.refs[ref]; !ok {
		return e.fail(napigo.StatusInvalidArg, "unknown reference handle")
	}
	delete(e.refs, ref)
	return napigo.StatusOK
}

func (e *Engine) Wrap(env napigo.Env, obj napigo.Value, data any, finalize napigo.Finalizer) napigo.Status {
	if st := e.checkEnv(env); !st.OK() {
		return st
	}
	c, st := e.objectCell(obj)
	if !st.OK() {
		return st
	}
	if c.hasWrap {
		return e.fail(napigo.StatusInvalidArg, "object is already wrapped")
	}
	c.hasWrap = true
	c.wrapData = data
	c.wrapFin = finalize
	e.tracked[c] = struct{}{}
	return napigo.StatusOK
}

func (e *Engine) Unwrap(env napigo.Env, obj napigo.Value) (any, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return nil, st
	}
	c, st := e.objectCell(obj)
	if !st.OK() {
		return nil, st
	}
	if !c.hasWrap {
		return nil, e.fail(napigo.StatusInvalidArg, "object is not wrapped")
	}
	return c.wrapData, napigo.StatusOK
}

func (e *Engine) RemoveWrap(env napigo.Env, obj napigo.Value) (any, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return nil, st
	}
	c, st := e.objectCell(obj)
	if !st.OK() {
		return nil, st
	}
	if !c.hasWrap {
		return nil, e.fail(napigo.StatusInvalidArg, "object is not wrapped")
	}
	data := c.wrapData
	// Detach without running the finalizer.
	c.hasWrap = false
	c.wrapData = nil
	c.wrapFin = nil
	if c.extFin == nil {
		delete(e.tracked, c)
	}
	return data, napigo.StatusOK
}
