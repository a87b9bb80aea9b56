package napigo

// Callback is a host function invoked by the environment. It runs on
// the goroutine that owns env. Returning an error causes the bridge to
// throw into the environment rather than unwind the native stack.
type Callback func(env Env, info CallbackInfo) (Value, error)

// Finalizer is invoked by the environment's garbage collector when the
// value carrying it is collected. It runs on the owning goroutine.
type Finalizer func(data any)

// PropertyAttributes is the bitset controlling how a property behaves
// when defined on a native object or class.
type PropertyAttributes uint32

const (
	Writable PropertyAttributes = 1 << iota
	Enumerable
	Configurable
	Static
)

const (
	// DefaultProperty is the attribute set for plain data properties.
	DefaultProperty = Writable | Enumerable | Configurable
	// DefaultMethod is the attribute set for methods (non-enumerable).
	DefaultMethod = Writable | Configurable
)

// PropertyDescriptor declares one named slot for DefineProperties or
// DefineClass. Exactly one of Value, Method, or Getter/Setter should
// be set.
type PropertyDescriptor struct {
	Name       string
	Value      Value
	Method     Callback
	Getter     Callback
	Setter     Callback
	Data       any
	Attributes PropertyAttributes
}

// CallbackDetails is the decoded form of a CallbackInfo handle.
type CallbackDetails struct {
	This            Value
	Args            []Value
	Data            any
	IsConstructCall bool
}
