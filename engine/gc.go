package engine

import (
	"github.com/napigo/napigo"
)

// collect is a stop-the-world mark and sweep over the engine heap.
// Roots are: value handles in open scopes, the global object, module
// exports, the pending exception, and strong references. Weak
// references to unreachable cells are cleared, and finalizers of
// unreachable wrapped or external cells run immediately, on the
// owning goroutine.
func (e *Engine) collect() {
	seen := make(map[*cell]bool)
	markCell(e.global, seen)
	markCell(e.undefined, seen)
	markCell(e.null, seen)
	markCell(e.pending, seen)
	for _, c := range e.modules {
		markCell(c, seen)
	}
	for _, slot := range e.values {
		markCell(slot.cell, seen)
	}
	for _, entry := range e.refs {
		if entry.count > 0 {
			markCell(entry.target, seen)
		}
	}

	for _, entry := range e.refs {
		if entry.count == 0 && entry.target != nil && !seen[entry.target] {
			entry.target = nil
		}
	}

	for c := range e.tracked {
		if seen[c] {
			continue
		}
		delete(e.tracked, c)
		e.finalizeCell(c)
	}
}

// collectAll finalizes every tracked cell unconditionally. Used by
// engine teardown, where reachability no longer matters.
func (e *Engine) collectAll() {
	for c := range e.tracked {
		delete(e.tracked, c)
		e.finalizeCell(c)
	}
	for _, entry := range e.refs {
		entry.target = nil
	}
}

func (e *Engine) finalizeCell(c *cell) {
	if c.hasWrap {
		data, fin := c.wrapData, c.wrapFin
		c.hasWrap = false
		c.wrapData = nil
		c.wrapFin = nil
		if fin != nil {
			fin(data)
		}
	}
	if c.extFin != nil {
		fin := c.extFin
		c.extFin = nil
		fin(c.external)
	}
}

func markCell(c *cell, seen map[*cell]bool) {
	if c == nil || seen[c] {
		return
	}
	seen[c] = true
	for _, slot := range c.props {
		markCell(slot.value, seen)
	}
	for _, el := range c.elems {
		markCell(el, seen)
	}
	if c.class != nil {
		for _, slot := range c.class.protoProps {
			markCell(slot.value, seen)
		}
	}
	if c.instOf != nil {
		for _, slot := range c.instOf.protoProps {
			markCell(slot.value, seen)
		}
	}
}

// RequestGarbageCollection implements napigo.Platform.
func (e *Engine) RequestGarbageCollection(env napigo.Env) napigo.Status {
	if st := e.checkEnv(env); !st.OK() {
		return st
	}
	e.collect()
	return napigo.StatusOK
}
