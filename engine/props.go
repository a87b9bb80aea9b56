package engine

import (
	"github.com/napigo/napigo"
)

// checkPending gates operations that are not allowed to proceed while
// an exception is in flight.
func (e *Engine) checkPending() napigo.Status {
	if e.pending != nil {
		return e.fail(napigo.StatusPendingException, "an exception is pending")
	}
	return napigo.StatusOK
}

func (e *Engine) objectCell(v napigo.Value) (*cell, napigo.Status) {
	c, st := e.argCell(v)
	if !st.OK() {
		return nil, st
	}
	if c.kind != napigo.KindObject && c.kind != napigo.KindFunction {
		return nil, e.fail(napigo.StatusObjectExpected, "value is not an object")
	}
	return c, napigo.StatusOK
}

// lookup resolves name on the object itself, then on its class
// prototype when the object is a constructor-made instance.
func lookup(c *cell, name string) (*propSlot, bool) {
	if slot, ok := c.props[name]; ok {
		return slot, true
	}
	if c.instOf != nil {
		if slot, ok := c.instOf.protoProps[name]; ok {
			return slot, true
		}
	}
	return nil, false
}

func (e *Engine) HasProperty(env napigo.Env, obj napigo.Value, name string) (bool, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return false, st
	}
	c, st := e.objectCell(obj)
	if !st.OK() {
		return false, st
	}
	_, ok := lookup(c, name)
	return ok, napigo.StatusOK
}

func (e *Engine) GetProperty(env napigo.Env, obj napigo.Value, name string) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	if st := e.checkPending(); !st.OK() {
		return 0, st
	}
	c, st := e.objectCell(obj)
	if !st.OK() {
		return 0, st
	}
	slot, ok := lookup(c, name)
	if !ok {
		return e.alloc(e.undefined), napigo.StatusOK
	}
	if slot.getter != nil {
		result, st := e.invoke(slot.getter, c, nil, false)
		if !st.OK() {
			return 0, st
		}
		return e.alloc(result), napigo.StatusOK
	}
	if slot.value == nil {
		return e.alloc(e.undefined), napigo.StatusOK
	}
	return e.alloc(slot.value), napigo.StatusOK
}

func (e *Engine) SetProperty(env napigo.Env, obj napigo.Value, name string, v napigo.Value) napigo.Status {
	if st := e.checkEnv(env); !st.OK() {
		return st
	}
	if st := e.checkPending(); !st.OK() {
		return st
	}
	c, st := e.objectCell(obj)
	if !st.OK() {
		return st
	}
	vc, st := e.argCell(v)
	if !st.OK() {
		return st
	}
	if slot, ok := lookup(c, name); ok {
		if slot.setter != nil {
			_, st := e.invoke(slot.setter, c, []*cell{vc}, false)
			return st
		}
		if slot.getter != nil {
			return e.fail(napigo.StatusGenericFailure, "property has a getter but no setter: "+name)
		}
		if slot.attrs&napigo.Writable == 0 {
			return e.fail(napigo.StatusGenericFailure, "property is not writable: "+name)
		}
		// Assigning through a read-write prototype slot shadows it with
		// an own property, matching ordinary object semantics.
		if _, own := c.props[name]; own {
			slot.value = vc
			return napigo.StatusOK
		}
	}
	c.props[name] = &propSlot{value: vc, attrs: napigo.DefaultProperty}
	return napigo.StatusOK
}

func (e *Engine) GetElement(env napigo.Env, obj napigo.Value, index int) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	c, st := e.objectCell(obj)
	if !st.OK() {
		return 0, st
	}
	if !c.isArray {
		return 0, e.fail(napigo.StatusArrayExpected, "value is not an array")
	}
	if index < 0 || index >= len(c.elems) {
		return e.alloc(e.undefined), napigo.StatusOK
	}
	return e.alloc(c.elems[index]), napigo.StatusOK
}

func (e *Engine) SetElement(env napigo.Env, obj napigo.Value, index int, v napigo.Value) napigo.Status {
	if st := e.checkEnv(env); !st.OK() {
		return st
	}
	c, st := e.objectCell(obj)
	if !st.OK() {
		return st
	}
	if !c.isArray {
		return e.fail(napigo.StatusArrayExpected, "value is not an array")
	}
	if index < 0 {
		return e.fail(napigo.StatusInvalidArg, "negative array index")
	}
	vc, st := e.argCell(v)
	if !st.OK() {
		return st
	}
	for index >= len(c.elems) {
		c.elems = append(c.elems, e.undefined)
	}
	c.elems[index] = vc
	return napigo.StatusOK
}

func (e *Engine) ArrayLength(env napigo.Env, v napigo.Value) (int, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	c, st := e.argCell(v)
	if !st.OK() {
		return 0, st
	}
	if !c.isArray {
		return 0, e.fail(napigo.StatusArrayExpected, "value is not an array")
	}
	return len(c.elems), napigo.StatusOK
}

func (e *Engine) CallFunction(env napigo.Env, recv, fn napigo.Value, args []napigo.Value) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	if st := e.checkPending(); !st.OK() {
		return 0, st
	}
	fc, st := e.argCell(fn)
	if !st.OK() {
		return 0, st
	}
	if fc.kind != napigo.KindFunction || fc.call == nil {
		return 0, e.fail(napigo.StatusFunctionExpected, "value is not callable")
	}
	this := e.undefined
	if recv.IsValid() {
		rc, st := e.argCell(recv)
		if !st.OK() {
			return 0, st
		}
		this = rc
	}
	cells, st := e.argCells(args)
	if !st.OK() {
		return 0, st
	}
	result, st := e.invoke(fc.call, this, cells, false)
	if !st.OK() {
		return 0, st
	}
	return e.alloc(result), napigo.StatusOK
}

func (e *Engine) NewInstance(env napigo.Env, ctor napigo.Value, args []napigo.Value) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	if st := e.checkPending(); !st.OK() {
		return 0, st
	}
	cc, st := e.argCell(ctor)
	if !st.OK() {
		return 0, st
	}
	if cc.class == nil {
		return 0, e.fail(napigo.StatusFunctionExpected, "value is not a constructor")
	}
	cells, st := e.argCells(args)
	if !st.OK() {
		return 0, st
	}

	inst := newObjectCell()
	inst.instOf = cc.class
	if cc.class.ctor != nil {
		if _, st := e.invoke(cc.class.ctor, inst, cells, true); !st.OK() {
			return 0, st
		}
	}
	return e.alloc(inst), napigo.StatusOK
}

func (e *Engine) DefineProperties(env napigo.Env, obj napigo.Value, props []napigo.PropertyDescriptor) napigo.Status {
	if st := e.checkEnv(env); !st.OK() {
		return st
	}
	if st := e.checkPending(); !st.OK() {
		return st
	}
	c, st := e.objectCell(obj)
	if !st.OK() {
		return st
	}
	for _, p := range props {
		slot, st := e.descriptorSlot(p)
		if !st.OK() {
			return st
		}
		c.props[p.Name] = slot
	}
	return napigo.StatusOK
}

// descriptorSlot converts one property descriptor into a heap slot.
func (e *Engine) descriptorSlot(p napigo.PropertyDescriptor) (*propSlot, napigo.Status) {
	if p.Name == "" {
		return nil, e.fail(napigo.StatusNameExpected, "property descriptor has no name")
	}
	slot := &propSlot{attrs: p.Attributes}
	switch {
	case p.Getter != nil || p.Setter != nil:
		if p.Method != nil || p.Value.IsValid() {
			return nil, e.fail(napigo.StatusInvalidArg,
				"property descriptor mixes accessors with a value: "+p.Name)
		}
		if p.Getter != nil {
			slot.getter = &callable{name: p.Name, cb: p.Getter, data: p.Data}
		}
		if p.Setter != nil {
			slot.setter = &callable{name: p.Name, cb: p.Setter, data: p.Data}
		}
	case p.Method != nil:
		fn := newObjectCell()
		fn.kind = napigo.KindFunction
		fn.call = &callable{name: p.Name, cb: p.Method, data: p.Data}
		slot.value = fn
	case p.Value.IsValid():
		vc, st := e.argCell(p.Value)
		if !st.OK() {
			return nil, st
		}
		slot.value = vc
	default:
		slot.value = e.undefined
	}
	return slot, napigo.StatusOK
}

func (e *Engine) DefineClass(env napigo.Env, name string, ctor napigo.Callback, data any, props []napigo.PropertyDescriptor) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	if st := e.checkPending(); !st.OK() {
		return 0, st
	}
	if name == "" {
		return 0, e.fail(napigo.StatusNameExpected, "class name must not be empty")
	}

	info := &classInfo{name: name, protoProps: make(map[string]*propSlot)}
	if ctor != nil {
		info.ctor = &callable{name: name, cb: ctor, data: data}
	}

	fn := newObjectCell()
	fn.kind = napigo.KindFunction
	fn.class = info

	for _, p := range props {
		slot, st := e.descriptorSlot(p)
		if !st.OK() {
			return 0, st
		}
		if p.Attributes&napigo.Static != 0 {
			fn.props[p.Name] = slot
		} else {
			info.protoProps[p.Name] = slot
		}
	}
	return e.alloc(fn), napigo.StatusOK
}

func (e *Engine) CallbackArgs(env napigo.Env, info napigo.CallbackInfo) (napigo.CallbackDetails, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return napigo.CallbackDetails{}, st
	}
	details, ok := e.infos[info]
	if !ok {
		return napigo.CallbackDetails{}, e.fail(napigo.StatusInvalidArg, "callback info is not active")
	}
	return *details, napigo.StatusOK
}

func (e *Engine) argCells(args []napigo.Value) ([]*cell, napigo.Status) {
	cells := make([]*cell, len(args))
	for i, a := range args {
		c, st := e.argCell(a)
		if !st.OK() {
			return nil, st
		}
		cells[i] = c
	}
	return cells, napigo.StatusOK
}

// invoke runs a callback inside its own handle scope. A Go error
// returned by the callback becomes a pending exception; the returned
// value cell outlives the callback scope because cells are reachable
// independently of the scope that first exposed them.
func (e *Engine) invoke(call *callable, this *cell, args []*cell, construct bool) (*cell, napigo.Status) {
	sc, st := e.OpenHandleScope(e.env)
	if !st.OK() {
		return nil, st
	}

	details := &napigo.CallbackDetails{
		This:            e.alloc(this),
		Args:            make([]napigo.Value, len(args)),
		Data:            call.data,
		IsConstructCall: construct,
	}
	for i, a := range args {
		details.Args[i] = e.alloc(a)
	}
	e.nextInfo++
	info := napigo.CallbackInfo(e.nextInfo)
	e.infos[info] = details

	ret, err := call.cb(e.env, info)

	delete(e.infos, info)
	var result *cell
	if err == nil && ret.IsValid() {
		result, _ = e.cellOf(ret)
	}
	if st := e.CloseHandleScope(e.env, sc); !st.OK() {
		return nil, st
	}

	if err != nil {
		e.throwGoError(err)
	}
	if e.pending != nil {
		return nil, e.fail(napigo.StatusPendingException, "exception thrown by callback")
	}
	if result == nil {
		result = e.undefined
	}
	return result, napigo.StatusOK
}

// throwGoError materializes a callback's Go error as an exception
// object with a message property.
func (e *Engine) throwGoError(err error) {
	exc := newObjectCell()
	exc.props["message"] = &propSlot{
		value: &cell{kind: napigo.KindString, str: err.Error()},
		attrs: napigo.DefaultProperty,
	}
	e.pending = exc
}
