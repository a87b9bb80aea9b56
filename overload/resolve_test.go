package overload

import (
	goerrors "errors"
	"reflect"
	"testing"

	"github.com/napigo/napigo"
	"github.com/napigo/napigo/errors"
)

func typ[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func param[T any]() Param {
	return Param{Type: typ[T]()}
}

func defaulted[T any](def any) Param {
	return Param{Type: typ[T](), Default: def, HasDefault: true}
}

func num(v float64) Argument {
	return Argument{Kind: napigo.KindNumber, Number: v}
}

func mustGroup(t *testing.T, name string, cands ...*Candidate) *Group {
	t.Helper()
	g, err := NewGroup(name, cands...)
	if err != nil {
		t.Fatalf("NewGroup(%s) failed: %v", name, err)
	}
	return g
}

func TestNewGroup_Validation(t *testing.T) {
	if _, err := NewGroup("empty"); err == nil {
		t.Error("empty group should be rejected")
	}

	dup := &Candidate{Params: []Param{param[string]()}, Fn: 1}
	dup2 := &Candidate{Params: []Param{param[string]()}, Fn: 2}
	if _, err := NewGroup("dup", dup, dup2); err == nil {
		t.Error("duplicate signatures should be rejected")
	}

	nonTrailing := &Candidate{Params: []Param{defaulted[int](0), param[string]()}}
	if _, err := NewGroup("nontrailing", nonTrailing); err == nil {
		t.Error("non-trailing default should be rejected")
	}
}

func TestResolve_Arity(t *testing.T) {
	one := &Candidate{Params: []Param{param[string]()}, Fn: "one"}
	two := &Candidate{Params: []Param{param[string](), param[string]()}, Fn: "two"}
	oneOrTwo := &Candidate{Params: []Param{param[bool](), defaulted[float64](0.0)}, Fn: "oneOrTwo"}

	g := mustGroup(t, "op", one, two, oneOrTwo)

	// Zero arguments: nothing accepts.
	_, err := g.Resolve(nil)
	if !goerrors.Is(err, errors.ArityMismatch(0, "")) {
		t.Fatalf("expected arity_mismatch, got %v", err)
	}

	// One string argument: one and oneOrTwo both accept arity 1, but
	// the kind stage separates them.
	m, err := g.Resolve([]Argument{{Kind: napigo.KindString}})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Candidate.Fn != "one" {
		t.Fatalf("resolved %v, want one", m.Candidate.Fn)
	}

	// One boolean argument resolves to the defaulted candidate and
	// fills the missing trailing default.
	m, err = g.Resolve([]Argument{{Kind: napigo.KindBoolean}})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Candidate.Fn != "oneOrTwo" {
		t.Fatalf("resolved %v, want oneOrTwo", m.Candidate.Fn)
	}
	if len(m.Filled) != 1 || m.Filled[0] != 0.0 {
		t.Fatalf("Filled = %v, want [0.0]", m.Filled)
	}

	// Two string arguments resolve by arity+kind.
	m, err = g.Resolve([]Argument{{Kind: napigo.KindString}, {Kind: napigo.KindString}})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Candidate.Fn != "two" {
		t.Fatalf("resolved %v, want two", m.Candidate.Fn)
	}
}

func TestResolve_ArityAmbiguity(t *testing.T) {
	// Two distinct overloads both accepting a single string: no stage
	// can separate them, so resolution must fail loudly.
	a := &Candidate{Params: []Param{param[string]()}, Fn: "a"}
	b := &Candidate{Params: []Param{param[string](), defaulted[string]("x")}, Fn: "b"}
	g := mustGroup(t, "op", a, b)

	_, err := g.Resolve([]Argument{{Kind: napigo.KindString}})
	if !goerrors.Is(err, errors.Ambiguous(0, 0)) {
		t.Fatalf("expected ambiguous, got %v", err)
	}
}

func TestResolve_KindStage(t *testing.T) {
	boolCand := &Candidate{Params: []Param{param[bool]()}, Fn: "bool"}
	strCand := &Candidate{Params: []Param{param[string]()}, Fn: "string"}
	fnCand := &Candidate{Params: []Param{param[func()]()}, Fn: "func"}
	g := mustGroup(t, "op", boolCand, strCand, fnCand)

	cases := []struct {
		kind napigo.ValueKind
		want any
	}{
		{napigo.KindBoolean, "bool"},
		{napigo.KindString, "string"},
		{napigo.KindFunction, "func"},
	}
	for _, tc := range cases {
		m, err := g.Resolve([]Argument{{Kind: tc.kind}})
		if err != nil {
			t.Fatalf("Resolve(%v) failed: %v", tc.kind, err)
		}
		if m.Candidate.Fn != tc.want {
			t.Errorf("Resolve(%v) = %v, want %v", tc.kind, m.Candidate.Fn, tc.want)
		}
	}

	// A number matches none of the three.
	_, err := g.Resolve([]Argument{num(1)})
	if !goerrors.Is(err, errors.KindMismatch(0, "")) {
		t.Fatalf("expected kind_mismatch, got %v", err)
	}
}

func TestResolve_NullishNeedsNullableParam(t *testing.T) {
	value := &Candidate{Params: []Param{param[bool]()}, Fn: "value"}
	ptr := &Candidate{Params: []Param{param[*bool]()}, Fn: "ptr"}
	g := mustGroup(t, "op", value, ptr)

	m, err := g.Resolve([]Argument{{Kind: napigo.KindNull}})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Candidate.Fn != "ptr" {
		t.Fatalf("null resolved to %v, want ptr", m.Candidate.Fn)
	}
}

func TestResolve_NumericNarrowing(t *testing.T) {
	u8 := &Candidate{Params: []Param{param[uint8]()}, Fn: "uint8"}
	i32 := &Candidate{Params: []Param{param[int32]()}, Fn: "int32"}
	g := mustGroup(t, "op", u8, i32)

	cases := []struct {
		value float64
		want  any
	}{
		{200, "uint8"},  // fits unsigned 8-bit, more specific
		{-5, "int32"},   // negative eliminates the unsigned candidate
		{1000, "int32"}, // out of 8-bit range
	}
	for _, tc := range cases {
		m, err := g.Resolve([]Argument{num(tc.value)})
		if err != nil {
			t.Fatalf("Resolve(%v) failed: %v", tc.value, err)
		}
		if m.Candidate.Fn != tc.want {
			t.Errorf("Resolve(%v) = %v, want %v", tc.value, m.Candidate.Fn, tc.want)
		}
	}
}

func TestResolve_NumericIntegerVsFloat(t *testing.T) {
	i64 := &Candidate{Params: []Param{param[int64]()}, Fn: "int64"}
	f64 := &Candidate{Params: []Param{param[float64]()}, Fn: "float64"}
	g := mustGroup(t, "op", i64, f64)

	// Mathematically integral values prefer the integral type.
	m, err := g.Resolve([]Argument{num(42)})
	if err != nil {
		t.Fatalf("Resolve(42) failed: %v", err)
	}
	if m.Candidate.Fn != "int64" {
		t.Fatalf("Resolve(42) = %v, want int64", m.Candidate.Fn)
	}

	// Fractional values eliminate every integral candidate.
	m, err = g.Resolve([]Argument{num(4.5)})
	if err != nil {
		t.Fatalf("Resolve(4.5) failed: %v", err)
	}
	if m.Candidate.Fn != "float64" {
		t.Fatalf("Resolve(4.5) = %v, want float64", m.Candidate.Fn)
	}
}

func TestResolve_NumericFloatWidth(t *testing.T) {
	f32 := &Candidate{Params: []Param{param[float32]()}, Fn: "float32"}
	f64 := &Candidate{Params: []Param{param[float64]()}, Fn: "float64"}
	g := mustGroup(t, "op", f32, f64)

	// Larger float width preferred to avoid precision loss.
	m, err := g.Resolve([]Argument{num(3.25)})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Candidate.Fn != "float64" {
		t.Fatalf("Resolve = %v, want float64", m.Candidate.Fn)
	}
}

func TestResolve_NumericNoMatch(t *testing.T) {
	u8 := &Candidate{Params: []Param{param[uint8]()}, Fn: "uint8"}
	u16 := &Candidate{Params: []Param{param[uint16]()}, Fn: "uint16"}
	g := mustGroup(t, "op", u8, u16)

	_, err := g.Resolve([]Argument{num(-1)})
	if !goerrors.Is(err, errors.NumericMismatch(0, 0)) {
		t.Fatalf("expected numeric_mismatch, got %v", err)
	}
}

type shape interface{ Area() float64 }
type circle struct{ r float64 }

func (c *circle) Area() float64 { return 3 * c.r * c.r }

func TestResolve_ObjectSpecificity_ConcreteOverInterface(t *testing.T) {
	iface := &Candidate{Params: []Param{param[shape]()}, Fn: "iface"}
	conc := &Candidate{Params: []Param{param[*circle]()}, Fn: "concrete"}
	g := mustGroup(t, "op", iface, conc)

	m, err := g.Resolve([]Argument{{
		Kind:     napigo.KindObject,
		Concrete: typ[*circle](),
	}})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Candidate.Fn != "concrete" {
		t.Fatalf("Resolve = %v, want concrete (most derived assignable)", m.Candidate.Fn)
	}
}

func TestResolve_ObjectSpecificity_EliminatesUnassignable(t *testing.T) {
	type box struct{}
	conc := &Candidate{Params: []Param{param[*circle]()}, Fn: "circle"}
	other := &Candidate{Params: []Param{param[*box]()}, Fn: "box"}
	g := mustGroup(t, "op", conc, other)

	m, err := g.Resolve([]Argument{{
		Kind:     napigo.KindObject,
		Concrete: typ[*circle](),
	}})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Candidate.Fn != "circle" {
		t.Fatalf("Resolve = %v, want circle", m.Candidate.Fn)
	}

	// An unrelated concrete type matches neither.
	type widget struct{}
	_, err = g.Resolve([]Argument{{
		Kind:     napigo.KindObject,
		Concrete: typ[*widget](),
	}})
	if !goerrors.Is(err, errors.ObjectMismatch(0, "")) {
		t.Fatalf("expected object_mismatch, got %v", err)
	}
}

func TestResolve_SlicePreferredOverArray(t *testing.T) {
	slice := &Candidate{Params: []Param{param[[]float64]()}, Fn: "slice"}
	array := &Candidate{Params: []Param{param[[4]float64]()}, Fn: "array"}
	g := mustGroup(t, "op", slice, array)

	m, err := g.Resolve([]Argument{{Kind: napigo.KindObject, ArrayLike: true}})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Candidate.Fn != "slice" {
		t.Fatalf("Resolve = %v, want slice", m.Candidate.Fn)
	}
}

type instant struct{}
type zonedInstant struct{}

func TestResolve_DateFlavorByStructuralField(t *testing.T) {
	plain := &Candidate{Params: []Param{param[instant]()}, Fn: "instant"}
	zoned := &Candidate{
		Params: []Param{{Type: typ[zonedInstant](), RequiresField: "offset"}},
		Fn:     "zoned",
	}
	g := mustGroup(t, "op", plain, zoned)

	// Object carrying an offset field picks the offset-aware flavor.
	m, err := g.Resolve([]Argument{{
		Kind:   napigo.KindObject,
		Fields: map[string]bool{"getTime": true, "offset": true},
	}})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Candidate.Fn != "zoned" {
		t.Fatalf("Resolve = %v, want zoned", m.Candidate.Fn)
	}

	// Without the field the offset-aware candidate is eliminated.
	m, err = g.Resolve([]Argument{{
		Kind:   napigo.KindObject,
		Fields: map[string]bool{"getTime": true},
	}})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Candidate.Fn != "instant" {
		t.Fatalf("Resolve = %v, want instant", m.Candidate.Fn)
	}
}

func TestResolve_ObjectAmbiguity(t *testing.T) {
	type a struct{}
	type b struct{}
	// Both accept any plain object; no axis discriminates.
	ca := &Candidate{Params: []Param{param[*a]()}, Fn: "a"}
	cb := &Candidate{Params: []Param{param[*b]()}, Fn: "b"}
	g := mustGroup(t, "op", ca, cb)

	_, err := g.Resolve([]Argument{{Kind: napigo.KindObject}})
	var e *errors.Error
	if !goerrors.As(err, &e) || e.Kind != errors.KindAmbiguous {
		t.Fatalf("expected ambiguous, got %v", err)
	}
	if e.Pos != 0 {
		t.Fatalf("ambiguity should name position 0, got %d", e.Pos)
	}
}

func TestResolve_SingleCandidateShortCircuit(t *testing.T) {
	// A lone arity survivor is returned without kind checks.
	only := &Candidate{Params: []Param{param[string](), param[string]()}, Fn: "only"}
	other := &Candidate{Params: []Param{param[bool]()}, Fn: "other"}
	g := mustGroup(t, "op", only, other)

	m, err := g.Resolve([]Argument{num(1), num(2)})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if m.Candidate.Fn != "only" {
		t.Fatalf("Resolve = %v, want only", m.Candidate.Fn)
	}
}
