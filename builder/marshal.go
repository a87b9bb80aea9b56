package builder

import (
	"fmt"
	"reflect"

	"github.com/napigo/napigo"
	"github.com/napigo/napigo/errors"
	"github.com/napigo/napigo/hostctx"
	"github.com/napigo/napigo/overload"
)

var (
	valueType = reflect.TypeOf(napigo.Value(0))
	anyType   = reflect.TypeOf((*any)(nil)).Elem()
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// snapshot captures the dynamic shape of one call-site argument for
// overload resolution. fields lists the structural field names the
// group discriminates on; only those are probed.
func snapshot(c *hostctx.Context, env napigo.Env, fields []string, v napigo.Value) (overload.Argument, error) {
	platform := c.Platform()
	kind, st := platform.ValueKindOf(env, v)
	if !st.OK() {
		return overload.Argument{}, statusErr(c, st)
	}

	arg := overload.Argument{Kind: kind}
	switch kind {
	case napigo.KindNumber:
		n, st := platform.NumberValue(env, v)
		if !st.OK() {
			return arg, statusErr(c, st)
		}
		arg.Number = n
	case napigo.KindExternal:
		if data, st := platform.ExternalValue(env, v); st.OK() {
			arg.Concrete = reflect.TypeOf(data)
		}
	case napigo.KindObject:
		if arr, st := platform.IsArray(env, v); st.OK() && arr {
			arg.ArrayLike = true
			break
		}
		if data, st := platform.Unwrap(env, v); st.OK() {
			arg.Concrete = reflect.TypeOf(data)
		}
		if len(fields) > 0 {
			arg.Fields = make(map[string]bool, len(fields))
			for _, name := range fields {
				if has, st := platform.HasProperty(env, v, name); st.OK() && has {
					arg.Fields[name] = true
				}
			}
		}
	}
	return arg, nil
}

// convertIn materializes one argument as the Go value the selected
// candidate expects.
func convertIn(c *hostctx.Context, env napigo.Env, v napigo.Value, t reflect.Type) (reflect.Value, error) {
	platform := c.Platform()
	if t == valueType {
		return reflect.ValueOf(v), nil
	}

	kind, st := platform.ValueKindOf(env, v)
	if !st.OK() {
		return reflect.Value{}, statusErr(c, st)
	}

	switch kind {
	case napigo.KindUndefined, napigo.KindNull:
		switch t.Kind() {
		case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, convErr(kind, t)

	case napigo.KindBoolean:
		b, st := platform.BoolValue(env, v)
		if !st.OK() {
			return reflect.Value{}, statusErr(c, st)
		}
		if t.Kind() == reflect.Bool {
			out := reflect.New(t).Elem()
			out.SetBool(b)
			return out, nil
		}
		if t == anyType {
			return reflect.ValueOf(b), nil
		}
		return reflect.Value{}, convErr(kind, t)

	case napigo.KindNumber:
		n, st := platform.NumberValue(env, v)
		if !st.OK() {
			return reflect.Value{}, statusErr(c, st)
		}
		out := reflect.New(t).Elem()
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out.SetInt(int64(n))
			return out, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out.SetUint(uint64(n))
			return out, nil
		case reflect.Float32, reflect.Float64:
			out.SetFloat(n)
			return out, nil
		}
		if t == anyType {
			return reflect.ValueOf(n), nil
		}
		return reflect.Value{}, convErr(kind, t)

	case napigo.KindString:
		s, st := platform.StringValue(env, v)
		if !st.OK() {
			return reflect.Value{}, statusErr(c, st)
		}
		if t.Kind() == reflect.String {
			out := reflect.New(t).Elem()
			out.SetString(s)
			return out, nil
		}
		if t == anyType {
			return reflect.ValueOf(s), nil
		}
		return reflect.Value{}, convErr(kind, t)

	case napigo.KindExternal:
		data, st := platform.ExternalValue(env, v)
		if !st.OK() {
			return reflect.Value{}, statusErr(c, st)
		}
		return assign(data, t)

	case napigo.KindObject:
		if arr, _ := platform.IsArray(env, v); arr {
			return convertArray(c, env, v, t)
		}
		if data, st := platform.Unwrap(env, v); st.OK() {
			return assign(data, t)
		}
		return reflect.Value{}, errors.InvalidInput(errors.StageCallback,
			fmt.Sprintf("plain object argument cannot become %s", t))
	}
	return reflect.Value{}, convErr(kind, t)
}

func convertArray(c *hostctx.Context, env napigo.Env, v napigo.Value, t reflect.Type) (reflect.Value, error) {
	platform := c.Platform()
	n, st := platform.ArrayLength(env, v)
	if !st.OK() {
		return reflect.Value{}, statusErr(c, st)
	}

	var out reflect.Value
	switch t.Kind() {
	case reflect.Slice:
		out = reflect.MakeSlice(t, n, n)
	case reflect.Array:
		if t.Len() != n {
			return reflect.Value{}, errors.InvalidInput(errors.StageCallback,
				fmt.Sprintf("array length %d does not fit %s", n, t))
		}
		out = reflect.New(t).Elem()
	default:
		return reflect.Value{}, convErr(napigo.KindObject, t)
	}

	for i := 0; i < n; i++ {
		el, st := platform.GetElement(env, v, i)
		if !st.OK() {
			return reflect.Value{}, statusErr(c, st)
		}
		ev, err := convertIn(c, env, el, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(ev)
	}
	return out, nil
}

func assign(data any, t reflect.Type) (reflect.Value, error) {
	if data == nil {
		switch t.Kind() {
		case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, errors.InvalidInput(errors.StageCallback, "nil payload for non-nilable parameter")
	}
	rv := reflect.ValueOf(data)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if t == anyType {
		return rv, nil
	}
	return reflect.Value{}, errors.InvalidInput(errors.StageCallback,
		fmt.Sprintf("host value of type %s is not assignable to %s", rv.Type(), t))
}

func convErr(kind napigo.ValueKind, t reflect.Type) error {
	return errors.InvalidInput(errors.StageCallback,
		fmt.Sprintf("%s argument cannot become %s", kind, t))
}

// convertOut turns a callback's Go result into a heap value. Registered
// host objects come back as their cached wrappers; unregistered ones
// fall back to opaque externals.
func convertOut(c *hostctx.Context, env napigo.Env, rv reflect.Value) (napigo.Value, error) {
	platform := c.Platform()
	if !rv.IsValid() {
		v, st := platform.GetUndefined(env)
		return statusValue(c, v, st)
	}
	if rv.Type() == valueType {
		return rv.Interface().(napigo.Value), nil
	}
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			v, st := platform.GetNull(env)
			return statusValue(c, v, st)
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Bool:
		v, st := platform.CreateBoolean(env, rv.Bool())
		return statusValue(c, v, st)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, st := platform.CreateNumber(env, float64(rv.Int()))
		return statusValue(c, v, st)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, st := platform.CreateNumber(env, float64(rv.Uint()))
		return statusValue(c, v, st)
	case reflect.Float32, reflect.Float64:
		v, st := platform.CreateNumber(env, rv.Float())
		return statusValue(c, v, st)
	case reflect.String:
		v, st := platform.CreateString(env, rv.String())
		return statusValue(c, v, st)
	case reflect.Slice, reflect.Array:
		arr, st := platform.CreateArray(env, rv.Len())
		if !st.OK() {
			return 0, statusErr(c, st)
		}
		for i := 0; i < rv.Len(); i++ {
			ev, err := convertOut(c, env, rv.Index(i))
			if err != nil {
				return 0, err
			}
			if st := platform.SetElement(env, arr, i, ev); !st.OK() {
				return 0, statusErr(c, st)
			}
		}
		return arr, nil
	case reflect.Ptr:
		if rv.IsNil() {
			v, st := platform.GetNull(env)
			return statusValue(c, v, st)
		}
	}

	w, err := c.GetOrCreateObjectWrapper(rv.Interface())
	if err == nil {
		return w, nil
	}
	if goErrIs(err, errors.KindNotRegistered) {
		v, st := platform.CreateExternal(env, rv.Interface(), nil)
		return statusValue(c, v, st)
	}
	return 0, err
}

func goErrIs(err error, kind errors.Kind) bool {
	e, ok := err.(*errors.Error)
	return ok && e.Kind == kind
}

func statusValue(c *hostctx.Context, v napigo.Value, st napigo.Status) (napigo.Value, error) {
	if !st.OK() {
		return 0, statusErr(c, st)
	}
	return v, nil
}

func statusErr(c *hostctx.Context, st napigo.Status) error {
	message := ""
	if c.Dispatcher().OnOwner() {
		message = c.Platform().GetLastErrorInfo(c.Env()).Message
	}
	if st == napigo.StatusPendingException {
		return errors.PendingException(errors.StageCallback, message)
	}
	return errors.StatusFailure(errors.StageCallback, st.String(), message)
}
