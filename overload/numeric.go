package overload

import (
	"math"
	"reflect"
)

// numericRank orders numeric parameter types by specificity, lowest
// rank most specific: integral before floating, smaller width before
// larger, unsigned before signed at equal width. Among floats the
// larger width is preferred to avoid precision loss.
var numericRank = map[reflect.Kind]int{
	reflect.Uint8:   0,
	reflect.Int8:    1,
	reflect.Uint16:  2,
	reflect.Int16:   3,
	reflect.Uint32:  4,
	reflect.Int32:   5,
	reflect.Uint:    6,
	reflect.Int:     7,
	reflect.Uint64:  8,
	reflect.Int64:   9,
	reflect.Float64: 10,
	reflect.Float32: 11,
}

// anyRank is the rank of an untyped (empty interface) parameter at a
// numeric position: less specific than every numeric type.
const anyRank = 12

func rankOf(t reflect.Type) int {
	if isAny(t) {
		return anyRank
	}
	if r, ok := numericRank[deref(t).Kind()]; ok {
		return r
	}
	return anyRank
}

// isMathematicalInteger reports whether v has no fractional part.
func isMathematicalInteger(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v == math.Trunc(v)
}

// representable reports whether the runtime numeric value v fits a
// parameter of type t, using integerness, sign, and bit-width checks.
func representable(t reflect.Type, v float64) bool {
	if isAny(t) {
		return true
	}

	switch deref(t).Kind() {
	case reflect.Float32, reflect.Float64:
		return true
	case reflect.Int8:
		return isMathematicalInteger(v) && v >= math.MinInt8 && v <= math.MaxInt8
	case reflect.Int16:
		return isMathematicalInteger(v) && v >= math.MinInt16 && v <= math.MaxInt16
	case reflect.Int32:
		return isMathematicalInteger(v) && v >= math.MinInt32 && v <= math.MaxInt32
	case reflect.Int, reflect.Int64:
		// 2^63 is the first float64 above MaxInt64.
		return isMathematicalInteger(v) && v >= math.MinInt64 && v < math.Exp2(63)
	case reflect.Uint8:
		return isMathematicalInteger(v) && v >= 0 && v <= math.MaxUint8
	case reflect.Uint16:
		return isMathematicalInteger(v) && v >= 0 && v <= math.MaxUint16
	case reflect.Uint32:
		return isMathematicalInteger(v) && v >= 0 && v <= math.MaxUint32
	case reflect.Uint, reflect.Uint64:
		return isMathematicalInteger(v) && v >= 0 && v < math.Exp2(64)
	}
	return false
}
