package overload

import (
	"math/big"
	"reflect"

	"github.com/napigo/napigo"
)

var bigIntType = reflect.TypeOf((*big.Int)(nil)).Elem()

// isAny reports whether t is the empty interface, compatible with
// every dynamic kind and least specific everywhere.
func isAny(t reflect.Type) bool {
	return t.Kind() == reflect.Interface && t.NumMethod() == 0
}

// deref unwraps one level of pointer.
func deref(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

// nullable reports whether t can hold a null/undefined argument.
func nullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// hostAssignable reports whether a value of concrete host type from
// can fill a parameter of type to.
func hostAssignable(from, to reflect.Type) bool {
	if from == to {
		return true
	}
	if from.AssignableTo(to) {
		return true
	}
	if to.Kind() == reflect.Interface && from.Implements(to) {
		return true
	}
	return false
}

// kindCompatible is the fixed compatibility table of the dynamic-kind
// stage: whether a parameter of type t can accept an argument of the
// observed kind at all.
func kindCompatible(t reflect.Type, arg Argument) bool {
	if isAny(t) {
		return true
	}

	switch arg.Kind {
	case napigo.KindBoolean:
		return deref(t).Kind() == reflect.Bool

	case napigo.KindNumber:
		return isNumericKind(deref(t).Kind())

	case napigo.KindString:
		return deref(t).Kind() == reflect.String

	case napigo.KindNull, napigo.KindUndefined:
		return nullable(t)

	case napigo.KindFunction:
		return t.Kind() == reflect.Func

	case napigo.KindBigint:
		d := deref(t)
		return d.Kind() == reflect.Int64 || d.Kind() == reflect.Uint64 || d == bigIntType

	case napigo.KindExternal:
		if arg.Concrete != nil {
			return hostAssignable(arg.Concrete, t)
		}
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Struct:
			return true
		}
		return false

	case napigo.KindObject:
		switch t.Kind() {
		case reflect.Slice, reflect.Array:
			// Sequence parameters only accept array-like objects.
			return arg.ArrayLike
		case reflect.Struct, reflect.Map, reflect.Interface:
			return true
		case reflect.Pointer:
			return t.Elem().Kind() == reflect.Struct
		}
		return false

	case napigo.KindSymbol:
		// Symbols only flow into untyped parameters, handled above.
		return false
	}
	return false
}
