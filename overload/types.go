package overload

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/napigo/napigo"
	"github.com/napigo/napigo/errors"
)

// Param describes one parameter of a candidate signature.
type Param struct {
	Type reflect.Type
	// Default fills the argument slot when the call site omits a
	// trailing argument. Defaults must be trailing within a candidate.
	Default    any
	HasDefault bool
	// RequiresField names a structural field the argument object must
	// carry for this parameter to match. Used to disambiguate between
	// parameter types that accept the same dynamic kind but model
	// different shapes (date flavors, for example).
	RequiresField string
}

// Candidate is one immutable overload descriptor: a parameter list and
// the callable it selects. Fn is opaque to the resolution engine.
type Candidate struct {
	Params []Param
	Fn     any
}

// required returns the number of parameters without defaults.
func (c *Candidate) required() int {
	n := 0
	for _, p := range c.Params {
		if !p.HasDefault {
			n++
		}
	}
	return n
}

func (c *Candidate) total() int { return len(c.Params) }

// signature renders the parameter type list for diagnostics and
// duplicate detection.
func (c *Candidate) signature() string {
	parts := make([]string, len(c.Params))
	for i, p := range c.Params {
		if p.Type == nil {
			parts[i] = "<nil>"
		} else {
			parts[i] = p.Type.String()
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Group is a validated set of candidates for one logical operation.
type Group struct {
	name       string
	candidates []*Candidate
}

// NewGroup validates and builds an overload group. Candidates must be
// non-empty, defaults must be trailing, and exact duplicate signatures
// are rejected since no narrowing stage could ever separate them.
func NewGroup(name string, candidates ...*Candidate) (*Group, error) {
	if len(candidates) == 0 {
		return nil, errors.InvalidInput(errors.StageOverload, "overload group needs at least one candidate")
	}

	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		defaulted := false
		for i, p := range c.Params {
			if p.Type == nil {
				return nil, errors.InvalidInput(errors.StageOverload,
					fmt.Sprintf("%s: candidate %s has nil type at parameter %d", name, c.signature(), i))
			}
			if p.HasDefault {
				defaulted = true
			} else if defaulted {
				return nil, errors.InvalidInput(errors.StageOverload,
					fmt.Sprintf("%s: candidate %s has a non-trailing default", name, c.signature()))
			}
		}
		sig := c.signature()
		if seen[sig] {
			return nil, errors.InvalidInput(errors.StageOverload,
				fmt.Sprintf("%s: duplicate signature %s", name, sig))
		}
		seen[sig] = true
	}

	return &Group{name: name, candidates: candidates}, nil
}

// Name returns the logical operation name the group was built for.
func (g *Group) Name() string { return g.name }

// Len returns the number of candidates.
func (g *Group) Len() int { return len(g.candidates) }

// RequiredFields returns the distinct structural field names any
// candidate's parameters declare, so call sites know which fields to
// probe when snapshotting object arguments.
func (g *Group) RequiredFields() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range g.candidates {
		for _, p := range c.Params {
			if p.RequiresField != "" && !seen[p.RequiresField] {
				seen[p.RequiresField] = true
				out = append(out, p.RequiresField)
			}
		}
	}
	return out
}

// Argument is a kind-level snapshot of one call-site argument, taken
// on the owning goroutine so the engine itself stays pure.
type Argument struct {
	Kind napigo.ValueKind
	// Number is the runtime numeric value, valid when Kind is Number.
	Number float64
	// Concrete is the underlying host type when the value was produced
	// by unwrapping a host object; nil otherwise.
	Concrete reflect.Type
	// ArrayLike marks objects with array semantics.
	ArrayLike bool
	// Fields lists structural fields observed on an object argument,
	// consulted by parameters declaring RequiresField.
	Fields map[string]bool
}

// Match is the outcome of a successful resolution.
type Match struct {
	Candidate *Candidate
	// Filled holds the default values for trailing parameters the call
	// site omitted, in parameter order.
	Filled []any
}

// acceptedArities renders the set of argument counts the group
// accepts, for arity diagnostics.
func (g *Group) acceptedArities() string {
	var parts []string
	for _, c := range g.candidates {
		req, tot := c.required(), c.total()
		if req == tot {
			parts = append(parts, strconv.Itoa(req))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", req, tot))
		}
	}
	return strings.Join(parts, ", ")
}
