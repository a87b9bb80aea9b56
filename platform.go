package napigo

// CallMode selects queueing behavior for CallThreadsafeFunction.
type CallMode int

const (
	// NonBlocking returns StatusQueueFull instead of waiting when the
	// queue is at capacity.
	NonBlocking CallMode = iota
	// Blocking waits for queue space.
	Blocking
)

// TSFNHandler is invoked on the owning goroutine for every item
// dequeued from a thread-safe function. data is the value passed to
// CallThreadsafeFunction.
type TSFNHandler func(env Env, data any)

// Platform is the capability surface of an embedded runtime. Every
// method returns a Status; on a non-OK status, GetLastErrorInfo on the
// same goroutine retrieves the extended message.
//
// All methods taking an Env must be called from the goroutine that
// owns that environment. The only exceptions are CallThreadsafeFunction,
// AcquireThreadsafeFunction, and ReleaseThreadsafeFunction, which are
// callable from any goroutine.
type Platform interface {
	// Value creation.
	GetUndefined(env Env) (Value, Status)
	GetNull(env Env) (Value, Status)
	GetGlobal(env Env) (Value, Status)
	CreateNumber(env Env, n float64) (Value, Status)
	CreateString(env Env, s string) (Value, Status)
	CreateBoolean(env Env, b bool) (Value, Status)
	CreateObject(env Env) (Value, Status)
	CreateArray(env Env, length int) (Value, Status)
	CreateFunction(env Env, name string, cb Callback, data any) (Value, Status)
	CreateExternal(env Env, data any, finalize Finalizer) (Value, Status)

	// Value inspection.
	ValueKindOf(env Env, v Value) (ValueKind, Status)
	NumberValue(env Env, v Value) (float64, Status)
	StringValue(env Env, v Value) (string, Status)
	BoolValue(env Env, v Value) (bool, Status)
	ExternalValue(env Env, v Value) (any, Status)
	IsArray(env Env, v Value) (bool, Status)
	IsDate(env Env, v Value) (bool, Status)
	StrictEquals(env Env, a, b Value) (bool, Status)

	// Properties and calls.
	HasProperty(env Env, obj Value, name string) (bool, Status)
	GetProperty(env Env, obj Value, name string) (Value, Status)
	SetProperty(env Env, obj Value, name string, v Value) Status
	GetElement(env Env, obj Value, index int) (Value, Status)
	SetElement(env Env, obj Value, index int, v Value) Status
	ArrayLength(env Env, v Value) (int, Status)
	CallFunction(env Env, recv, fn Value, args []Value) (Value, Status)
	NewInstance(env Env, ctor Value, args []Value) (Value, Status)
	DefineProperties(env Env, obj Value, props []PropertyDescriptor) Status
	DefineClass(env Env, name string, ctor Callback, data any, props []PropertyDescriptor) (Value, Status)
	CallbackArgs(env Env, info CallbackInfo) (CallbackDetails, Status)

	// References.
	CreateReference(env Env, v Value, initialRefCount uint32) (Ref, Status)
	ReferenceRef(env Env, ref Ref) (uint32, Status)
	ReferenceUnref(env Env, ref Ref) (uint32, Status)
	// GetReferenceValue returns the referenced value, or an invalid
	// Value with StatusOK when a weak reference's target has been
	// collected.
	GetReferenceValue(env Env, ref Ref) (Value, Status)
	DeleteReference(env Env, ref Ref) Status

	// Wrapping: attaches an opaque host payload to a heap object.
	// finalize runs when the object is collected; RemoveWrap detaches
	// the payload without running it.
	Wrap(env Env, obj Value, data any, finalize Finalizer) Status
	Unwrap(env Env, obj Value) (any, Status)
	RemoveWrap(env Env, obj Value) (any, Status)

	// Handle scopes.
	OpenHandleScope(env Env) (HandleScope, Status)
	CloseHandleScope(env Env, scope HandleScope) Status

	// Module loading: resolves a module by name from the environment's
	// loader (require/import equivalent).
	LoadModule(env Env, name string) (Value, Status)

	// Errors and exceptions.
	GetLastErrorInfo(env Env) ErrorInfo
	Throw(env Env, errValue Value) Status
	ThrowError(env Env, code, message string) Status
	IsExceptionPending(env Env) (bool, Status)
	GetAndClearLastException(env Env) (Value, Status)

	// Thread-safe functions. maxQueueSize 0 means unbounded.
	// initialThreadCount seeds the acquire/release count.
	CreateThreadsafeFunction(env Env, maxQueueSize, initialThreadCount int, handler TSFNHandler, finalize Finalizer) (ThreadsafeFunction, Status)
	CallThreadsafeFunction(fn ThreadsafeFunction, data any, mode CallMode) Status
	RefThreadsafeFunction(env Env, fn ThreadsafeFunction) Status
	UnrefThreadsafeFunction(env Env, fn ThreadsafeFunction) Status
	AcquireThreadsafeFunction(fn ThreadsafeFunction) Status
	ReleaseThreadsafeFunction(fn ThreadsafeFunction, abort bool) Status

	// RequestGarbageCollection forces a collection cycle where the
	// environment supports it (test and diagnostic use only).
	RequestGarbageCollection(env Env) Status
}
