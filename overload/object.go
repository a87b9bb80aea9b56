package overload

import (
	"reflect"

	"github.com/napigo/napigo/errors"
)

// filterObject eliminates candidates whose parameter at pos cannot
// accept the object argument: unmet structural-field requirements, or
// a known concrete host type the parameter is not assignable from.
func filterObject(cands []*Candidate, pos int, arg Argument) ([]*Candidate, error) {
	next := cands[:0:0]
	for _, c := range cands {
		p := c.Params[pos]
		if p.RequiresField != "" && !arg.Fields[p.RequiresField] {
			continue
		}
		if arg.Concrete != nil && !isAny(p.Type) && !hostAssignable(arg.Concrete, p.Type) {
			continue
		}
		next = append(next, c)
	}
	if len(next) == 0 {
		return nil, errors.ObjectMismatch(pos, describeObject(arg))
	}
	return next, nil
}

// maximalAt keeps the candidates whose parameter at pos is not
// strictly less specific than another surviving candidate's. Unrelated
// parameter types are incomparable and contribute to ambiguity rather
// than resolving it.
func maximalAt(cands []*Candidate, pos int, arg Argument) []*Candidate {
	kept := cands[:0:0]
	for _, c := range cands {
		dominated := false
		for _, d := range cands {
			if d == c {
				continue
			}
			if moreSpecific(d.Params[pos], c.Params[pos], arg) {
				dominated = true
				break
			}
		}
		if !dominated {
			kept = append(kept, c)
		}
	}
	return kept
}

// moreSpecific reports whether parameter a is strictly more specific
// than parameter b for the given argument.
func moreSpecific(a, b Param, arg Argument) bool {
	if a.Type == b.Type && a.RequiresField == b.RequiresField {
		return false
	}

	// A matched structural-field requirement beats a parameter with no
	// requirement: the shape told us which flavor the caller meant.
	if a.RequiresField != "" && arg.Fields[a.RequiresField] && b.RequiresField == "" {
		return true
	}
	if b.RequiresField != "" && arg.Fields[b.RequiresField] && a.RequiresField == "" {
		return false
	}

	// A sequence parameter is preferred over a fixed-size array of the
	// same element type: the slice supports by-reference semantics the
	// array cannot.
	if arg.ArrayLike &&
		a.Type.Kind() == reflect.Slice && b.Type.Kind() == reflect.Array &&
		a.Type.Elem() == b.Type.Elem() {
		return true
	}

	// Untyped parameters lose to anything typed.
	if !isAny(a.Type) && isAny(b.Type) {
		return true
	}
	if isAny(a.Type) {
		return false
	}

	// Assignability partial order: a type assignable to another is the
	// more derived (more specific) of the two.
	aToB := hostAssignable(a.Type, b.Type)
	bToA := hostAssignable(b.Type, a.Type)
	return aToB && !bToA
}

func describeObject(arg Argument) string {
	if arg.Concrete != nil {
		return arg.Concrete.String()
	}
	if arg.ArrayLike {
		return "array-like object"
	}
	return "object"
}
