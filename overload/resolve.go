package overload

import (
	"github.com/napigo/napigo"
	"github.com/napigo/napigo/errors"
)

// Resolve deterministically selects exactly one candidate for the
// supplied arguments, or fails with a stage-specific diagnostic. The
// algorithm is strict staged narrowing: each stage only considers
// candidates that survived the previous one, and resolution returns as
// soon as a single survivor remains.
func (g *Group) Resolve(args []Argument) (*Match, error) {
	n := len(args)

	// Stage 1: arity. Trailing defaults widen the acceptable range.
	cands := make([]*Candidate, 0, len(g.candidates))
	for _, c := range g.candidates {
		if c.required() <= n && n <= c.total() {
			cands = append(cands, c)
		}
	}
	if len(cands) == 0 {
		return nil, errors.ArityMismatch(n, g.acceptedArities())
	}
	if len(cands) == 1 {
		return g.match(cands[0], n), nil
	}

	// Stage 2: dynamic-kind compatibility, position by position.
	for pos := 0; pos < n; pos++ {
		next := cands[:0:0]
		for _, c := range cands {
			if kindCompatible(c.Params[pos].Type, args[pos]) {
				next = append(next, c)
			}
		}
		if len(next) == 0 {
			return nil, errors.KindMismatch(pos, args[pos].Kind.String())
		}
		cands = next
	}
	if len(cands) == 1 {
		return g.match(cands[0], n), nil
	}

	// Stage 3: numeric specificity via runtime introspection of each
	// numeric argument's value.
	for pos := 0; pos < n; pos++ {
		if args[pos].Kind != napigo.KindNumber {
			continue
		}
		v := args[pos].Number

		next := cands[:0:0]
		for _, c := range cands {
			if representable(c.Params[pos].Type, v) {
				next = append(next, c)
			}
		}
		if len(next) == 0 {
			return nil, errors.NumericMismatch(pos, v)
		}

		best := anyRank + 1
		for _, c := range next {
			if r := rankOf(c.Params[pos].Type); r < best {
				best = r
			}
		}
		kept := next[:0:0]
		for _, c := range next {
			if rankOf(c.Params[pos].Type) == best {
				kept = append(kept, c)
			}
		}
		cands = kept
		if len(cands) == 1 {
			return g.match(cands[0], n), nil
		}
	}

	// Stage 4: object specificity.
	ambiguousPos := -1
	for pos := 0; pos < n; pos++ {
		k := args[pos].Kind
		if k != napigo.KindObject && k != napigo.KindExternal {
			continue
		}

		next, err := filterObject(cands, pos, args[pos])
		if err != nil {
			return nil, err
		}
		cands = maximalAt(next, pos, args[pos])
		if len(cands) == 1 {
			return g.match(cands[0], n), nil
		}
		ambiguousPos = pos
	}

	return nil, errors.Ambiguous(ambiguousPos, len(cands))
}

// match finalizes a resolution, collecting literal defaults for the
// trailing parameters the call site did not supply.
func (g *Group) match(c *Candidate, argCount int) *Match {
	m := &Match{Candidate: c}
	for i := argCount; i < len(c.Params); i++ {
		m.Filled = append(m.Filled, c.Params[i].Default)
	}
	return m
}
