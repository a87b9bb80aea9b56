package arena

import (
	"strings"
	"sync"
	"testing"
)

func TestArena_PinGetUnpin(t *testing.T) {
	a := New()

	h := a.Pin("payload")
	if h == 0 {
		t.Fatal("expected non-zero handle")
	}

	v, ok := a.Get(h)
	if !ok || v != "payload" {
		t.Fatalf("Get = (%v, %v), want (payload, true)", v, ok)
	}

	v, ok = a.Unpin(h)
	if !ok || v != "payload" {
		t.Fatalf("Unpin = (%v, %v), want (payload, true)", v, ok)
	}
	if a.Len() != 0 {
		t.Fatalf("Len = %d after Unpin, want 0", a.Len())
	}
}

func TestArena_UnpinExactlyOnce(t *testing.T) {
	a := New()
	h := a.Pin(42)

	if _, ok := a.Unpin(h); !ok {
		t.Fatal("first Unpin failed")
	}
	if _, ok := a.Unpin(h); ok {
		t.Fatal("second Unpin succeeded; freeing must be exactly-once")
	}
	if _, ok := a.Get(h); ok {
		t.Fatal("Get succeeded on freed handle")
	}
}

func TestArena_ZeroHandleInvalid(t *testing.T) {
	a := New()
	if _, ok := a.Get(0); ok {
		t.Fatal("Get(0) should fail")
	}
	if _, ok := a.Unpin(0); ok {
		t.Fatal("Unpin(0) should fail")
	}
}

func TestArena_HandleReuse(t *testing.T) {
	a := New()
	h1 := a.Pin("a")
	a.Unpin(h1)

	h2 := a.Pin("b")
	if h2 != h1 {
		t.Fatalf("expected freed handle %d to be reused, got %d", h1, h2)
	}
	v, ok := a.Get(h2)
	if !ok || v != "b" {
		t.Fatalf("Get after reuse = (%v, %v), want (b, true)", v, ok)
	}
}

func TestArena_ConcurrentPins(t *testing.T) {
	a := New()
	const n = 64

	var wg sync.WaitGroup
	handles := make(chan Handle, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles <- a.Pin(i)
		}(i)
	}
	wg.Wait()
	close(handles)

	seen := map[Handle]bool{}
	for h := range handles {
		if h == 0 {
			t.Fatal("got zero handle")
		}
		if seen[h] {
			t.Fatalf("duplicate handle %d", h)
		}
		seen[h] = true
	}
	if a.Len() != n {
		t.Fatalf("Len = %d, want %d", a.Len(), n)
	}
}

func TestArena_DebugStacks(t *testing.T) {
	a := NewDebug()
	h := a.Pin("tracked")

	stacks := a.DebugStacks()
	if stack, ok := stacks[h]; !ok {
		t.Fatal("expected a recorded stack for live pin")
	} else if !strings.Contains(stack, "arena") {
		t.Errorf("stack does not mention allocation site: %q", stack)
	}

	a.Unpin(h)
	if len(a.DebugStacks()) != 0 {
		t.Fatal("expected no stacks after Unpin")
	}
}

func TestArena_CloseReportsLeaks(t *testing.T) {
	a := New()
	a.Pin("leaked")

	if err := a.Close(); err == nil {
		t.Fatal("expected leak error from Close")
	}
	// Idempotent after close.
	if err := a.Close(); err != nil {
		t.Fatalf("second Close = %v, want nil", err)
	}
	if h := a.Pin("after close"); h != 0 {
		t.Fatal("Pin after Close should return 0")
	}
}

func TestArena_CloseClean(t *testing.T) {
	a := New()
	h := a.Pin("x")
	a.Unpin(h)
	if err := a.Close(); err != nil {
		t.Fatalf("Close on balanced arena = %v, want nil", err)
	}
}
