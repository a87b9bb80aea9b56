package engine

import (
	"github.com/napigo/napigo"
)

func (e *Engine) Throw(env napigo.Env, errValue napigo.Value) napigo.Status {
	if st := e.checkEnv(env); !st.OK() {
		return st
	}
	if e.pending != nil {
		return e.fail(napigo.StatusPendingException, "an exception is already pending")
	}
	c, st := e.argCell(errValue)
	if !st.OK() {
		return st
	}
	e.pending = c
	return napigo.StatusOK
}

func (e *Engine) ThrowError(env napigo.Env, code, message string) napigo.Status {
	if st := e.checkEnv(env); !st.OK() {
		return st
	}
	if e.pending != nil {
		return e.fail(napigo.StatusPendingException, "an exception is already pending")
	}
	exc := newObjectCell()
	exc.props["message"] = &propSlot{
		value: &cell{kind: napigo.KindString, str: message},
		attrs: napigo.DefaultProperty,
	}
	if code != "" {
		exc.props["code"] = &propSlot{
			value: &cell{kind: napigo.KindString, str: code},
			attrs: napigo.DefaultProperty,
		}
	}
	e.pending = exc
	return napigo.StatusOK
}

func (e *Engine) IsExceptionPending(env napigo.Env) (bool, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return false, st
	}
	return e.pending != nil, napigo.StatusOK
}

func (e *Engine) GetAndClearLastException(env napigo.Env) (napigo.Value, napigo.Status) {
	if st := e.checkEnv(env); !st.OK() {
		return 0, st
	}
	if e.pending == nil {
		return 0, napigo.StatusOK
	}
	c := e.pending
	e.pending = nil
	return e.alloc(c), napigo.StatusOK
}
