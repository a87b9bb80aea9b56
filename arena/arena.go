package arena

import (
	"fmt"
	"runtime"
	"sync"
)

// Handle is an opaque index into an Arena. Handle 0 is reserved and
// always invalid.
type Handle uint32

// Arena pins host objects so they can be attached to heap objects as
// opaque payloads. Every Pin must be matched by exactly one Unpin; the
// live count is exposed so harnesses can assert no leaks and no double
// frees.
type Arena struct {
	entries  []entry
	freeList []Handle
	stacks   map[Handle]string
	mu       sync.Mutex
	debug    bool
	closed   bool
}

type entry struct {
	value any
	valid bool
}

// New creates an empty arena.
func New() *Arena {
	return &Arena{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// NewDebug creates an arena that records the call stack of every Pin,
// retrievable via DebugStacks for leak diagnosis.
func NewDebug() *Arena {
	a := New()
	a.debug = true
	a.stacks = make(map[Handle]string)
	return a
}

// Pin stores value and returns its handle. Returns 0 after Close.
func (a *Arena) Pin(value any) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0
	}

	e := entry{value: value, valid: true}

	var handle Handle
	if len(a.freeList) > 0 {
		handle = a.freeList[len(a.freeList)-1]
		a.freeList = a.freeList[:len(a.freeList)-1]
		a.entries[handle-1] = e
	} else {
		a.entries = append(a.entries, e)
		handle = Handle(len(a.entries))
	}

	if a.debug {
		buf := make([]byte, 4096)
		n := runtime.Stack(buf, false)
		a.stacks[handle] = string(buf[:n])
	}
	return handle
}

// Get retrieves a pinned value.
func (a *Arena) Get(handle Handle) (any, bool) {
	if handle == 0 {
		return nil, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	idx := handle - 1
	if int(idx) >= len(a.entries) {
		return nil, false
	}
	e := a.entries[idx]
	if !e.valid {
		return nil, false
	}
	return e.value, true
}

// Unpin frees a handle and returns the value it pinned. A second Unpin
// of the same handle returns (nil, false): freeing is exactly-once.
func (a *Arena) Unpin(handle Handle) (any, bool) {
	if handle == 0 {
		return nil, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	idx := handle - 1
	if int(idx) >= len(a.entries) {
		return nil, false
	}
	e := &a.entries[idx]
	if !e.valid {
		return nil, false
	}

	value := e.value
	e.valid = false
	e.value = nil
	a.freeList = append(a.freeList, handle)
	if a.debug {
		delete(a.stacks, handle)
	}
	return value, true
}

// Len returns the number of live pins.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := 0
	for _, e := range a.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over all live pins.
func (a *Arena) Each(fn func(Handle, any) bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, e := range a.entries {
		if e.valid {
			if !fn(Handle(i+1), e.value) {
				break
			}
		}
	}
}

// DebugStacks returns the Pin call stacks of all live handles. Empty
// unless the arena was created with NewDebug.
func (a *Arena) DebugStacks() map[Handle]string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[Handle]string, len(a.stacks))
	for h, s := range a.stacks {
		out[h] = s
	}
	return out
}

// Close invalidates all pins and stops accepting new ones. Returns an
// error describing the live pins it discarded, so disposal paths can
// surface leaks without failing cleanup.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	leaked := 0
	for i := range a.entries {
		if a.entries[i].valid {
			leaked++
			a.entries[i].valid = false
			a.entries[i].value = nil
		}
	}
	a.entries = nil
	a.freeList = nil
	a.stacks = nil

	if leaked > 0 {
		return fmt.Errorf("arena closed with %d live pin(s)", leaked)
	}
	return nil
}
