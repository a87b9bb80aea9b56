package hostctx

import (
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/napigo/napigo"
	"github.com/napigo/napigo/arena"
	"github.com/napigo/napigo/dispatch"
	"github.com/napigo/napigo/errors"
	"github.com/napigo/napigo/reference"
	"github.com/napigo/napigo/scope"
)

// Context is the per-environment runtime state of the bridge: the class
// registries, the object wrapper cache, the import cache, the pin
// arena, and the dispatcher that marshals work onto the owning
// goroutine. One Context exists per Env; look it up with For or
// CurrentContext.
type Context struct {
	platform   napigo.Platform
	env        napigo.Env
	dispatcher *dispatch.Context
	pins       *arena.Arena

	mu      sync.Mutex
	classes map[reflect.Type]*reference.Reference
	statics map[reflect.Type]*reference.Reference
	structs map[reflect.Type]*reference.Reference
	objects map[any]*wrapperEntry
	imports map[string]*reference.Reference

	disposed atomic.Bool
}

type deferred struct{}

// DeferredConstruction is the sentinel passed as the sole constructor
// argument when the host builds a wrapper for an existing object.
// Constructor trampolines must recognize it and skip host-side
// construction; the host object is attached afterwards via
// InitializeObjectWrapper.
var DeferredConstruction any = deferred{}

// IsDeferredConstruction reports whether a constructor invocation is a
// host-initiated wrapper build: a single external argument carrying
// the DeferredConstruction sentinel.
func IsDeferredConstruction(env napigo.Env, platform napigo.Platform, args []napigo.Value) bool {
	if len(args) != 1 {
		return false
	}
	kind, st := platform.ValueKindOf(env, args[0])
	if !st.OK() || kind != napigo.KindExternal {
		return false
	}
	data, st := platform.ExternalValue(env, args[0])
	return st.OK() && data == DeferredConstruction
}

// wrapperEntry caches the wrapper of one host object. The entry mutex
// serializes construction so racing creators cannot build two live
// wrappers for the same object.
type wrapperEntry struct {
	mu      sync.Mutex
	wrapper *reference.Reference // weak; nil until initialized
	pin     arena.Handle
}

// Option configures context construction.
type Option func(*Context)

// WithDebugPins records the call stack of every pin, retrievable via
// DebugPinStacks, for diagnosing wrapper leaks.
func WithDebugPins() Option {
	return func(c *Context) { c.pins = arena.NewDebug() }
}

// New creates the runtime context for env and registers it in the
// global env registry. Must be called on the goroutine that owns the
// environment, inside an active scope.
func New(env napigo.Env, platform napigo.Platform, opts ...Option) (*Context, error) {
	if !scope.OwnsEnv(env) {
		return nil, errors.InvalidThread(errors.StageContext, "hostctx.New")
	}

	dispatcher, err := dispatch.New(env, platform)
	if err != nil {
		return nil, err
	}

	c := &Context{
		platform:   platform,
		env:        env,
		dispatcher: dispatcher,
		pins:       arena.New(),
		classes:    make(map[reflect.Type]*reference.Reference),
		statics:    make(map[reflect.Type]*reference.Reference),
		structs:    make(map[reflect.Type]*reference.Reference),
		objects:    make(map[any]*wrapperEntry),
		imports:    make(map[string]*reference.Reference),
	}
	for _, opt := range opts {
		opt(c)
	}

	contexts.Store(env, c)
	return c, nil
}

// Env returns the environment this context belongs to.
func (c *Context) Env() napigo.Env { return c.env }

// Platform returns the capability surface the context was built on.
func (c *Context) Platform() napigo.Platform { return c.platform }

// Dispatcher returns the synchronization context for this environment.
func (c *Context) Dispatcher() *dispatch.Context { return c.dispatcher }

// PinCount returns the number of live object pins. A nonzero count
// after all wrappers have been collected indicates a leak.
func (c *Context) PinCount() int { return c.pins.Len() }

// DebugPinStacks returns Pin call stacks when WithDebugPins was used.
func (c *Context) DebugPinStacks() map[arena.Handle]string { return c.pins.DebugStacks() }

func (c *Context) guard() error {
	if c.disposed.Load() {
		return errors.Disposed(errors.StageContext, "runtime context")
	}
	return nil
}

// RegisterClass binds a host type to its constructor value. The
// constructor is held by a strong reference for the context's lifetime.
func (c *Context) RegisterClass(t reflect.Type, ctor napigo.Value) error {
	return c.register(c.classes, "class", t, ctor)
}

// RegisterStaticClass binds a host type exposed as a namespace of
// static members.
func (c *Context) RegisterStaticClass(t reflect.Type, value napigo.Value) error {
	return c.register(c.statics, "static class", t, value)
}

// RegisterStruct binds a by-value host type to its constructor.
func (c *Context) RegisterStruct(t reflect.Type, ctor napigo.Value) error {
	return c.register(c.structs, "struct", t, ctor)
}

func (c *Context) register(table map[reflect.Type]*reference.Reference, what string, t reflect.Type, value napigo.Value) error {
	if err := c.guard(); err != nil {
		return err
	}
	if t == nil {
		return errors.InvalidInput(errors.StageContext, "nil type")
	}

	c.mu.Lock()
	_, dup := table[t]
	c.mu.Unlock()
	if dup {
		return errors.AlreadyRegistered(what + " " + t.String())
	}

	ref, err := reference.NewStrong(value, reference.WithScheduler(c.dispatcher))
	if err != nil {
		return err
	}

	c.mu.Lock()
	if _, dup := table[t]; dup {
		c.mu.Unlock()
		ref.Dispose()
		return errors.AlreadyRegistered(what + " " + t.String())
	}
	table[t] = ref
	c.mu.Unlock()

	Logger().Debug("registered", zap.String("what", what), zap.String("type", t.String()))
	return nil
}

// ClassConstructor resolves the registered constructor for t. The
// returned handle is scoped to the current handle scope.
func (c *Context) ClassConstructor(t reflect.Type) (napigo.Value, error) {
	if err := c.guard(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	ref := c.classes[t]
	c.mu.Unlock()
	if ref == nil {
		return 0, errors.NotRegistered("class for " + t.String())
	}
	v, ok, err := ref.Value()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errors.Collected("class constructor")
	}
	return v, nil
}

// entryFor returns the wrapper cache entry for obj, creating it when
// absent. Callers then serialize on the entry's own mutex.
func (c *Context) entryFor(obj any) *wrapperEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.objects[obj]
	if !ok {
		entry = &wrapperEntry{}
		c.objects[obj] = entry
	}
	return entry
}

// GetOrCreateObjectWrapper returns the cached wrapper for obj, or
// constructs one from the registered class of obj's dynamic type.
// Construction is serialized per object, so at most one live wrapper
// exists per host object at any time; a second wrapper built during a
// race would be disposed immediately, never cached.
func (c *Context) GetOrCreateObjectWrapper(obj any) (napigo.Value, error) {
	if err := c.guard(); err != nil {
		return 0, err
	}
	if obj == nil {
		return 0, errors.InvalidInput(errors.StageContext, "nil object")
	}
	t := reflect.TypeOf(obj)
	if !t.Comparable() {
		return 0, errors.InvalidInput(errors.StageContext, "object type is not comparable: "+t.String())
	}

	c.mu.Lock()
	ctorRef := c.classes[t]
	c.mu.Unlock()
	if ctorRef == nil {
		return 0, errors.NotRegistered("class for " + t.String())
	}

	entry := c.entryFor(obj)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.wrapper != nil {
		v, ok, err := entry.wrapper.Value()
		if err != nil {
			return 0, err
		}
		if ok {
			return v, nil
		}
		// Target collected but the wrap finalizer has not evicted the
		// entry yet; rebuild in place.
	}

	var wrapper napigo.Value
	err := ctorRef.Run(func(ctor napigo.Value) error {
		marker, status := c.platform.CreateExternal(c.env, DeferredConstruction, nil)
		if !status.OK() {
			return c.statusErr(status)
		}
		v, status := c.platform.NewInstance(c.env, ctor, []napigo.Value{marker})
		if !status.OK() {
			return c.statusErr(status)
		}
		wrapper = v
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := c.initLocked(entry, wrapper, obj); err != nil {
		return 0, err
	}
	return wrapper, nil
}

// InitializeObjectWrapper binds a freshly constructed wrapper to obj:
// the object is pinned, attached via platform Wrap, and tracked by a
// weak reference. The wrap finalizer unpins the object and evicts the
// cache entry when the wrapper is collected. If obj already has a live
// wrapper, the caller's wrapper lost the race and is rejected so the
// caller can discard it.
func (c *Context) InitializeObjectWrapper(wrapper napigo.Value, obj any) error {
	if err := c.guard(); err != nil {
		return err
	}
	if obj == nil {
		return errors.InvalidInput(errors.StageContext, "nil object")
	}
	if !reflect.TypeOf(obj).Comparable() {
		return errors.InvalidInput(errors.StageContext, "object type is not comparable")
	}

	entry := c.entryFor(obj)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return c.initLocked(entry, wrapper, obj)
}

func (c *Context) initLocked(entry *wrapperEntry, wrapper napigo.Value, obj any) error {
	if entry.wrapper != nil {
		_, ok, err := entry.wrapper.Value()
		if err != nil {
			return err
		}
		if ok {
			return errors.AlreadyRegistered("wrapper for this object")
		}
		entry.wrapper.Dispose()
		entry.wrapper = nil
	}

	pin := c.pins.Pin(obj)
	if pin == 0 {
		return errors.Disposed(errors.StageContext, "pin arena")
	}

	status := c.platform.Wrap(c.env, wrapper, obj, func(any) {
		c.evict(obj, pin)
	})
	if !status.OK() {
		c.pins.Unpin(pin)
		return c.statusErr(status)
	}

	weak, err := reference.NewWeak(wrapper, reference.WithScheduler(c.dispatcher))
	if err != nil {
		c.platform.RemoveWrap(c.env, wrapper)
		c.pins.Unpin(pin)
		return err
	}

	entry.pin = pin
	entry.wrapper = weak
	return nil
}

// evict is the wrap finalizer: the embedded GC collected the wrapper,
// so the host object is released and the cache entry removed.
func (c *Context) evict(obj any, pin arena.Handle) {
	c.pins.Unpin(pin)

	c.mu.Lock()
	entry := c.objects[obj]
	c.mu.Unlock()
	if entry == nil {
		return
	}

	entry.mu.Lock()
	if entry.pin != pin {
		// The entry was re-initialized with a newer wrapper; leave it.
		entry.mu.Unlock()
		return
	}
	stale := entry.wrapper
	entry.wrapper = nil
	entry.pin = 0

	c.mu.Lock()
	if c.objects != nil && c.objects[obj] == entry {
		delete(c.objects, obj)
	}
	c.mu.Unlock()
	entry.mu.Unlock()

	if stale != nil {
		stale.Dispose()
	}
	Logger().Debug("wrapper evicted", zap.Uint32("pin", uint32(pin)))
}

// Import resolves and caches a value from the environment's module
// loader. With a module name only, the module's exports object is
// returned; with a property, that property of the exports (or of the
// global object when module is empty). Results are pinned by strong
// references for the context's lifetime.
func (c *Context) Import(module, property string) (napigo.Value, error) {
	if err := c.guard(); err != nil {
		return 0, err
	}
	if module == "" && property == "" {
		return 0, errors.InvalidInput(errors.StageContext, "import requires a module name or a property name")
	}

	key := module + "/" + property
	c.mu.Lock()
	cached := c.imports[key]
	c.mu.Unlock()
	if cached != nil {
		v, ok, err := cached.Value()
		if err != nil {
			return 0, err
		}
		if ok {
			return v, nil
		}
	}

	var v napigo.Value
	var status napigo.Status
	if module != "" {
		v, status = c.platform.LoadModule(c.env, module)
	} else {
		v, status = c.platform.GetGlobal(c.env)
	}
	if !status.OK() {
		return 0, c.statusErr(status)
	}
	if property != "" {
		v, status = c.platform.GetProperty(c.env, v, property)
		if !status.OK() {
			return 0, c.statusErr(status)
		}
	}

	strong, err := reference.NewStrong(v, reference.WithScheduler(c.dispatcher))
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	if old := c.imports[key]; old != nil {
		old.Dispose()
	}
	c.imports[key] = strong
	c.mu.Unlock()
	return v, nil
}

// Dispose tears the context down: all held references are released,
// the pin arena is closed (reporting leaks), and the dispatcher is
// disposed last so reference deletion can still marshal. Idempotent;
// per-entry failures are aggregated, not short-circuited.
func (c *Context) Dispose() error {
	if !c.disposed.CompareAndSwap(false, true) {
		return nil
	}
	contexts.Delete(c.env)

	c.mu.Lock()
	refs := make([]*reference.Reference, 0,
		len(c.classes)+len(c.statics)+len(c.structs)+len(c.imports)+len(c.objects))
	for _, r := range c.classes {
		refs = append(refs, r)
	}
	for _, r := range c.statics {
		refs = append(refs, r)
	}
	for _, r := range c.structs {
		refs = append(refs, r)
	}
	for _, r := range c.imports {
		refs = append(refs, r)
	}
	for _, entry := range c.objects {
		if entry.wrapper != nil {
			refs = append(refs, entry.wrapper)
		}
	}
	c.classes = nil
	c.statics = nil
	c.structs = nil
	c.imports = nil
	c.objects = nil
	c.mu.Unlock()

	var err error
	for _, r := range refs {
		err = multierr.Append(err, r.Dispose())
	}
	if closeErr := c.pins.Close(); closeErr != nil {
		Logger().Warn("pin arena closed with leaks", zap.Error(closeErr))
		err = multierr.Append(err, errors.Leak(closeErr.Error()))
	}
	c.dispatcher.Dispose()
	return err
}

func (c *Context) statusErr(status napigo.Status) error {
	message := ""
	if c.dispatcher.OnOwner() {
		message = c.platform.GetLastErrorInfo(c.env).Message
	}
	if status == napigo.StatusPendingException {
		return errors.PendingException(errors.StageContext, message)
	}
	return errors.StatusFailure(errors.StageContext, status.String(), message)
}
