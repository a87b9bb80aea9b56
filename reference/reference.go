package reference

import (
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/napigo/napigo"
	"github.com/napigo/napigo/errors"
	"github.com/napigo/napigo/internal/goid"
	"github.com/napigo/napigo/scope"
)

// Mode selects the lifetime semantics of a reference.
type Mode int

const (
	// Strong keeps the target alive in the embedded heap until the
	// reference is disposed or fully unreferenced.
	Strong Mode = iota
	// Weak does not keep the target alive; resolving after the
	// embedded GC collects it yields no value.
	Weak
)

// Scheduler marshals a closure onto the goroutine that owns the
// reference's environment. dispatch.Context satisfies this.
type Scheduler interface {
	Post(fn func(), allowSync bool)
}

// Option configures reference construction.
type Option func(*Reference)

// WithScheduler supplies the dispatcher used to marshal off-goroutine
// disposal (explicit or finalizer-driven) onto the owning goroutine.
// Without one, off-goroutine Dispose is rejected and the finalizer
// safety net only logs.
func WithScheduler(s Scheduler) Option {
	return func(r *Reference) { r.sched = s }
}

// Reference owns one native reference to a heap value. It must be
// disposed exactly once; a finalizer acts as a last-resort safety net
// but must not be relied on, since native reference slots can be
// exhausted long before a host GC pass runs.
type Reference struct {
	platform napigo.Platform
	sched    Scheduler
	env      napigo.Env
	ref      napigo.Ref
	owner    uint64
	mode     Mode
	disposed atomic.Bool
}

// NewStrong creates a strong reference (initial count 1) to value in
// the calling goroutine's current environment.
func NewStrong(value napigo.Value, opts ...Option) (*Reference, error) {
	return create(value, Strong, 1, opts)
}

// NewWeak creates a weak reference to value in the calling goroutine's
// current environment.
func NewWeak(value napigo.Value, opts ...Option) (*Reference, error) {
	return create(value, Weak, 0, opts)
}

func create(value napigo.Value, mode Mode, initial uint32, opts []Option) (*Reference, error) {
	s, err := scope.Current()
	if err != nil {
		return nil, err
	}

	env, platform := s.Env(), s.Platform()
	ref, status := platform.CreateReference(env, value, initial)
	if !status.OK() {
		return nil, statusErr(env, platform, status)
	}

	r := &Reference{
		platform: platform,
		env:      env,
		ref:      ref,
		owner:    s.Goroutine(),
		mode:     mode,
	}
	for _, opt := range opts {
		opt(r)
	}
	runtime.SetFinalizer(r, (*Reference).finalize)
	return r, nil
}

// Mode returns the reference's lifetime mode.
func (r *Reference) Mode() Mode { return r.mode }

// Env returns the environment the reference belongs to.
func (r *Reference) Env() napigo.Env { return r.env }

// Value resolves the reference. The second result is false when a weak
// reference's target has been collected; that is an expected outcome,
// not an error. Must be called on the owning goroutine.
func (r *Reference) Value() (napigo.Value, bool, error) {
	if r.disposed.Load() {
		return 0, false, errors.Disposed(errors.StageReference, "reference")
	}
	if goid.Current() != r.owner {
		return 0, false, errors.InvalidThread(errors.StageReference, "Reference.Value")
	}

	v, status := r.platform.GetReferenceValue(r.env, r.ref)
	if !status.OK() {
		return 0, false, statusErr(r.env, r.platform, status)
	}
	if !v.IsValid() {
		return 0, false, nil
	}
	return v, true, nil
}

// Run resolves the reference and executes fn with the live value. The
// resolved handle is only valid for the duration of fn; Run is the
// standard safe-access pattern. A collected weak target yields a
// collected error without invoking fn.
func (r *Reference) Run(fn func(napigo.Value) error) error {
	v, ok, err := r.Value()
	if err != nil {
		return err
	}
	if !ok {
		return errors.Collected("reference")
	}
	return fn(v)
}

// Ref increments a strong reference's count and returns the new count.
func (r *Reference) Ref() (uint32, error) {
	if r.mode != Strong {
		return 0, errors.InvalidInput(errors.StageReference, "Ref on a weak reference")
	}
	if r.disposed.Load() {
		return 0, errors.Disposed(errors.StageReference, "reference")
	}
	if goid.Current() != r.owner {
		return 0, errors.InvalidThread(errors.StageReference, "Reference.Ref")
	}
	count, status := r.platform.ReferenceRef(r.env, r.ref)
	if !status.OK() {
		return 0, statusErr(r.env, r.platform, status)
	}
	return count, nil
}

// Unref decrements a strong reference's count and returns the new count.
func (r *Reference) Unref() (uint32, error) {
	if r.mode != Strong {
		return 0, errors.InvalidInput(errors.StageReference, "Unref on a weak reference")
	}
	if r.disposed.Load() {
		return 0, errors.Disposed(errors.StageReference, "reference")
	}
	if goid.Current() != r.owner {
		return 0, errors.InvalidThread(errors.StageReference, "Reference.Unref")
	}
	count, status := r.platform.ReferenceUnref(r.env, r.ref)
	if !status.OK() {
		return 0, statusErr(r.env, r.platform, status)
	}
	return count, nil
}

// Dispose deletes the native reference. The first call wins; repeat
// calls are no-ops to tolerate finalizer races. When called from a
// goroutine that does not own the environment, the native delete is
// marshalled to the owner via the scheduler, or rejected when no
// scheduler was configured.
func (r *Reference) Dispose() error {
	if !r.disposed.CompareAndSwap(false, true) {
		return nil
	}
	runtime.SetFinalizer(r, nil)

	if goid.Current() == r.owner {
		if status := r.platform.DeleteReference(r.env, r.ref); !status.OK() {
			return statusErr(r.env, r.platform, status)
		}
		return nil
	}

	if r.sched == nil {
		// Undo the claim so a later on-thread Dispose can still run.
		r.disposed.Store(false)
		runtime.SetFinalizer(r, (*Reference).finalize)
		return errors.InvalidThread(errors.StageReference, "Reference.Dispose without a scheduler")
	}

	env, ref, platform := r.env, r.ref, r.platform
	r.sched.Post(func() {
		if status := platform.DeleteReference(env, ref); !status.OK() {
			Logger().Warn("marshalled reference delete failed",
				zap.String("status", status.String()))
		}
	}, true)
	return nil
}

// Disposed reports whether Dispose has run.
func (r *Reference) Disposed() bool { return r.disposed.Load() }

// finalize is the last-resort safety net for references the host GC
// reclaims without an explicit Dispose. It runs on the GC goroutine,
// so the native delete always goes through the scheduler.
func (r *Reference) finalize() {
	if !r.disposed.CompareAndSwap(false, true) {
		return
	}
	if r.sched == nil {
		Logger().Warn("reference leaked: finalized without a scheduler to marshal deletion")
		return
	}
	env, ref, platform := r.env, r.ref, r.platform
	r.sched.Post(func() {
		platform.DeleteReference(env, ref)
	}, false)
}

func statusErr(env napigo.Env, platform napigo.Platform, status napigo.Status) error {
	if status == napigo.StatusPendingException {
		info := platform.GetLastErrorInfo(env)
		return errors.PendingException(errors.StageReference, info.Message)
	}
	info := platform.GetLastErrorInfo(env)
	return errors.StatusFailure(errors.StageReference, status.String(), info.Message)
}
