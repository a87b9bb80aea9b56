package napigo

// Env identifies one instance of an embedded runtime environment.
// An Env is owned by exactly one goroutine at a time; all capability
// calls taking an Env must be made from that goroutine.
type Env uintptr

// Value identifies a single heap value inside one environment. A Value
// is only valid for the duration of the handle scope it was produced
// in; promote it to a Ref before storing it anywhere.
type Value uintptr

// Ref identifies a native reference created by CreateReference. Unlike
// a Value it survives handle scope teardown and must be released with
// DeleteReference exactly once.
type Ref uintptr

// HandleScope identifies an open handle scope.
type HandleScope uintptr

// CallbackInfo identifies the arguments of one in-flight callback
// invocation. Only valid inside that callback.
type CallbackInfo uintptr

// ThreadsafeFunction identifies a thread-safe dispatch queue. It is
// the only handle kind that may be used from goroutines that do not
// own the environment.
type ThreadsafeFunction uintptr

// IsValid reports whether the handle is non-zero. Zero is never a
// legal handle for any kind.
func (e Env) IsValid() bool                { return e != 0 }
func (v Value) IsValid() bool              { return v != 0 }
func (r Ref) IsValid() bool                { return r != 0 }
func (s HandleScope) IsValid() bool        { return s != 0 }
func (c CallbackInfo) IsValid() bool       { return c != 0 }
func (t ThreadsafeFunction) IsValid() bool { return t != 0 }
