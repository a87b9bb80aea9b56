package engine

import (
	"github.com/napigo/napigo"
)

// cell is one heap value. Cells are reachable from value handles in
// open scopes, from references with a live target, from the global
// object, and from module exports; everything else is collectable.
type cell struct {
	kind napigo.ValueKind

	num float64
	str string
	b   bool

	props   map[string]*propSlot
	elems   []*cell
	isArray bool

	call   *callable  // function cells
	class  *classInfo // constructor cells
	instOf *classInfo // instance cells

	external any
	extFin   napigo.Finalizer

	wrapData any
	wrapFin  napigo.Finalizer
	hasWrap  bool
}

type propSlot struct {
	value  *cell
	getter *callable
	setter *callable
	attrs  napigo.PropertyAttributes
}

type callable struct {
	name string
	cb   napigo.Callback
	data any
}

type classInfo struct {
	name       string
	ctor       *callable
	protoProps map[string]*propSlot
}

func newObjectCell() *cell {
	return &cell{kind: napigo.KindObject, props: make(map[string]*propSlot)}
}

type handleScope struct{}

type valueSlot struct {
	cell  *cell
	depth int
}

// alloc registers a cell in the innermost open handle scope and
// returns its value handle.
func (e *Engine) alloc(c *cell) napigo.Value {
	e.nextValue++
	v := napigo.Value(e.nextValue)
	e.values[v] = &valueSlot{cell: c, depth: len(e.scopes) - 1}
	return v
}

func (e *Engine) cellOf(v napigo.Value) (*cell, bool) {
	slot, ok := e.values[v]
	if !ok {
		return nil, false
	}
	return slot.cell, true
}

// argCell is the common "resolve or set last error" helper.
func (e *Engine) argCell(v napigo.Value) (*cell, napigo.Status) {
	c, ok := e.cellOf(v)
	if !ok {
		return nil, e.fail(napigo.StatusInvalidArg, "value handle is not valid in any open scope")
	}
	return c, napigo.StatusOK
}

// Value creation.

func (e *Engine) GetUndefined(env napigo.Env) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	return e.alloc(e.undefined), napigo.StatusOK
}

func (e *Engine) GetNull(env napigo.Env) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	return e.alloc(e.null), napigo.StatusOK
}

func (e *Engine) GetGlobal(env napigo.Env) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	return e.alloc(e.global), napigo.StatusOK
}

func (e *Engine) CreateNumber(env napigo.Env, n float64) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	return e.alloc(&cell{kind: napigo.KindNumber, num: n}), napigo.StatusOK
}

func (e *Engine) CreateString(env napigo.Env, s string) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	return e.alloc(&cell{kind: napigo.KindString, str: s}), napigo.StatusOK
}

func (e *Engine) CreateBoolean(env napigo.Env, b bool) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	return e.alloc(&cell{kind: napigo.KindBoolean, b: b}), napigo.StatusOK
}

func (e *Engine) CreateObject(env napigo.Env) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	return e.alloc(newObjectCell()), napigo.StatusOK
}

func (e *Engine) CreateArray(env napigo.Env, length int) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	c := newObjectCell()
	c.isArray = true
	c.elems = make([]*cell, length)
	for i := range c.elems {
		c.elems[i] = e.undefined
	}
	return e.alloc(c), napigo.StatusOK
}

func (e *Engine) CreateFunction(env napigo.Env, name string, cb napigo.Callback, data any) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	if cb == nil {
		return 0, e.fail(napigo.StatusInvalidArg, "callback must not be nil")
	}
	c := newObjectCell()
	c.kind = napigo.KindFunction
	c.call = &callable{name: name, cb: cb, data: data}
	return e.alloc(c), napigo.StatusOK
}

func (e *Engine) CreateExternal(env napigo.Env, data any, finalize napigo.Finalizer) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	c := &cell{kind: napigo.KindExternal, external: data, extFin: finalize}
	if finalize != nil {
		e.tracked[c] = struct{}{}
	}
	return e.alloc(c), napigo.StatusOK
}

// Value inspection.

func (e *Engine) ValueKindOf(env napigo.Env, v napigo.Value) (napigo.ValueKind, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	c, st := e.argCell(v)
	if !st.OK() {
		return 0, st
	}
	return c.kind, napigo.StatusOK
}

func (e *Engine) NumberValue(env napigo.Env, v napigo.Value) (float64, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	c, st := e.argCell(v)
	if !st.OK() {
		return 0, st
	}
	if c.kind != napigo.KindNumber {
		return 0, e.fail(napigo.StatusNumberExpected, "value is not a number")
	}
	return c.num, napigo.StatusOK
}

func (e *Engine) StringValue(env napigo.Env, v napigo.Value) (string, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return "", st
	}
	c, st := e.argCell(v)
	if !st.OK() {
		return "", st
	}
	if c.kind != napigo.KindString {
		return "", e.fail(napigo.StatusStringExpected, "value is not a string")
	}
	return c.str, napigo.StatusOK
}

func (e *Engine) BoolValue(env napigo.Env, v napigo.Value) (bool, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return false, st
	}
	c, st := e.argCell(v)
	if !st.OK() {
		return false, st
	}
	if c.kind != napigo.KindBoolean {
		return false, e.fail(napigo.StatusBooleanExpected, "value is not a boolean")
	}
	return c.b, napigo.StatusOK
}

func (e *Engine) ExternalValue(env napigo.Env, v napigo.Value) (any, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return nil, st
	}
	c, st := e.argCell(v)
	if !st.OK() {
		return nil, st
	}
	if c.kind != napigo.KindExternal {
		return nil, e.fail(napigo.StatusInvalidArg, "value is not an external")
	}
	return c.external, napigo.StatusOK
}

func (e *Engine) IsArray(env napigo.Env, v napigo.Value) (bool, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return false, st
	}
	c, st := e.argCell(v)
	if !st.OK() {
		return false, st
	}
	return c.isArray, napigo.StatusOK
}

func (e *Engine) IsDate(env napigo.Env, v napigo.Value) (bool, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return false, st
	}
	c, st := e.argCell(v)
	if !st.OK() {
		return false, st
	}
	if c.kind != napigo.KindObject {
		return false, napigo.StatusOK
	}
	_, ok := c.props["getTime"]
	return ok, napigo.StatusOK
}

func (e *Engine) StrictEquals(env napigo.Env, a, b napigo.Value) (bool, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return false, st
	}
	ca, st := e.argCell(a)
	if !st.OK() {
		return false, st
	}
	cb, st := e.argCell(b)
	if !st.OK() {
		return false, st
	}
	if ca == cb {
		return true, napigo.StatusOK
	}
	if ca.kind != cb.kind {
		return false, napigo.StatusOK
	}
	switch ca.kind {
	case napigo.KindUndefined, napigo.KindNull:
		return true, napigo.StatusOK
	case napigo.KindNumber:
		return ca.num == cb.num, napigo.StatusOK
	case napigo.KindString:
		return ca.str == cb.str, napigo.StatusOK
	case napigo.KindBoolean:
		return ca.b == cb.b, napigo.StatusOK
	}
	// Objects, functions, externals: identity only.
	return false, napigo.StatusOK
}

// Handle scopes.

func (e *Engine) OpenHandleScope(env napigo.Env) (napigo.HandleScope, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	e.scopes = append(e.scopes, &handleScope{})
	return napigo.HandleScope(len(e.scopes) - 1), napigo.StatusOK
}

func (e *Engine) CloseHandleScope(env napigo.Env, s napigo.HandleScope) napigo.Status {
	if st := e.checkEnv(env); !st.OK() {
		return st
	}
	depth := int(s)
	if depth <= 0 || depth != len(e.scopes)-1 {
		return e.fail(napigo.StatusHandleScopeMismatch, "handle scopes must close in stack order")
	}
	for v, slot := range e.values {
		if slot.depth >= depth {
			delete(e.values, v)
		}
	}
	e.scopes = e.scopes[:depth]
	return napigo.StatusOK
}

// Module loading.

func (e *Engine) LoadModule(env napigo.Env, name string) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	c, ok := e.modules[name]
	if !ok {
		return 0, e.fail(napigo.StatusGenericFailure, "module not found: "+name)
	}
	return e.alloc(c), napigo.StatusOK
}
