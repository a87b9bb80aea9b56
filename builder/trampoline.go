package builder

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/napigo/napigo"
	"github.com/napigo/napigo/errors"
	"github.com/napigo/napigo/hostctx"
	"github.com/napigo/napigo/overload"
)

type callKind int

const (
	callFunction callKind = iota // free function, no receiver
	callMethod                   // instance method, receiver from the wrapped This
	callConstructor              // host construction + wrapper initialization
)

// trampoline adapts an overload group into a napigo.Callback. It
// snapshots the arguments, resolves the overload, converts arguments
// and result, and captures panics so they surface as errors (which the
// engine translates into thrown exceptions) instead of unwinding into
// the native call frame.
func trampoline(c *hostctx.Context, group *overload.Group, kind callKind) napigo.Callback {
	fields := group.RequiredFields()
	return func(env napigo.Env, info napigo.CallbackInfo) (result napigo.Value, err error) {
		defer func() {
			if p := recover(); p != nil {
				Logger().Error("callback panicked",
					zap.String("operation", group.Name()), zap.Any("panic", p))
				result = 0
				err = &errors.Error{
					Stage:  errors.StageCallback,
					Kind:   errors.KindPanic,
					Detail: fmt.Sprintf("%s panicked: %v", group.Name(), p),
					Pos:    -1,
				}
			}
		}()

		platform := c.Platform()
		details, st := platform.CallbackArgs(env, info)
		if !st.OK() {
			return 0, statusErr(c, st)
		}

		if kind == callConstructor && hostctx.IsDeferredConstruction(env, platform, details.Args) {
			// Host-initiated wrapper build: the host object already
			// exists and is attached by the caller afterwards.
			return 0, nil
		}

		args := make([]overload.Argument, len(details.Args))
		for i, a := range details.Args {
			arg, err := snapshot(c, env, fields, a)
			if err != nil {
				return 0, err
			}
			args[i] = arg
		}

		m, err := group.Resolve(args)
		if err != nil {
			return 0, err
		}

		fnv := reflect.ValueOf(m.Candidate.Fn)
		if fnv.Kind() != reflect.Func {
			return 0, errors.InvalidInput(errors.StageCallback,
				group.Name()+": candidate target is not a function")
		}

		var in []reflect.Value
		if kind == callMethod {
			recv, err := receiver(c, env, details.This, fnv.Type().In(0))
			if err != nil {
				return 0, err
			}
			in = append(in, recv)
		}
		for i, a := range details.Args {
			cv, err := convertIn(c, env, a, m.Candidate.Params[i].Type)
			if err != nil {
				return 0, err
			}
			in = append(in, cv)
		}
		for i, d := range m.Filled {
			in = append(in, defaultValue(d, m.Candidate.Params[len(details.Args)+i].Type))
		}

		out, err := callReflect(fnv, in)
		if err != nil {
			return 0, err
		}

		if kind == callConstructor {
			if !out.IsValid() {
				return 0, errors.InvalidInput(errors.StageCallback,
					group.Name()+": constructor returned no host object")
			}
			if err := c.InitializeObjectWrapper(details.This, out.Interface()); err != nil {
				return 0, err
			}
			return 0, nil
		}
		if !out.IsValid() {
			return 0, nil
		}
		return convertOut(c, env, out)
	}
}

func receiver(c *hostctx.Context, env napigo.Env, this napigo.Value, t reflect.Type) (reflect.Value, error) {
	data, st := c.Platform().Unwrap(env, this)
	if !st.OK() {
		return reflect.Value{}, errors.InvalidInput(errors.StageCallback,
			"receiver is not a wrapped host object")
	}
	return assign(data, t)
}

func defaultValue(d any, t reflect.Type) reflect.Value {
	if d == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(d)
	if rv.Type() != t && rv.Type().ConvertibleTo(t) {
		rv = rv.Convert(t)
	}
	return rv
}

// callReflect invokes the candidate and splits its results into a
// value and an optional trailing error.
func callReflect(fnv reflect.Value, in []reflect.Value) (reflect.Value, error) {
	out := fnv.Call(in)
	if len(out) == 0 {
		return reflect.Value{}, nil
	}
	last := out[len(out)-1]
	if last.Type().Implements(errorType) {
		if !last.IsNil() {
			return reflect.Value{}, last.Interface().(error)
		}
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return reflect.Value{}, nil
	}
	return out[0], nil
}

// singleCandidate derives an overload candidate from a Go function's
// own signature, skipping skipRecv leading receiver parameters.
func singleCandidate(fn any, skipRecv int) (*overload.Candidate, error) {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func {
		return nil, errors.InvalidInput(errors.StageCallback, "target is not a function")
	}
	if t.NumIn() < skipRecv {
		return nil, errors.InvalidInput(errors.StageCallback, "function is missing its receiver parameter")
	}
	params := make([]overload.Param, 0, t.NumIn()-skipRecv)
	for i := skipRecv; i < t.NumIn(); i++ {
		params = append(params, overload.Param{Type: t.In(i)})
	}
	return &overload.Candidate{Params: params, Fn: fn}, nil
}

func singleGroup(name string, fn any, skipRecv int) (*overload.Group, error) {
	cand, err := singleCandidate(fn, skipRecv)
	if err != nil {
		return nil, err
	}
	return overload.NewGroup(name, cand)
}
