package arith

import (
	"math/big"

	"github.com/dkarv/mcsat/internal/vardb"
)

// pickValue chooses a witness for v within its current bounds, steering
// clear of every recorded disequality, rounding to an integer first if v
// is integer-typed (spec.md §8's "Integer-typed decisions return
// integer-valued picks").
func (p *Plugin) pickValue(v vardb.VarIndex) *big.Rat {
	lo := p.bounds.Lower(v)
	up := p.bounds.Upper(v)
	diseqs := p.bounds.Disequalities(v)
	isInt := p.isInteger[v]

	val := pickBetween(lo, up)
	if isInt {
		val = roundToInt(val, lo, up)
	}

	step := big.NewRat(1, 2)
	if isInt {
		step = big.NewRat(1, 1)
	}

	// While the candidate collides with a recorded disequality, walk
	// towards whichever bound remains strictly available, shrinking the
	// step each round. Bounded by one attempt per recorded disequality:
	// beyond that we accept the last candidate rather than loop forever
	// (a constructed instance with disequalities packed arbitrarily densely
	// could still exhaust every attempt).
	for i := 0; i <= len(diseqs); i++ {
		if !conflictsWithAny(val, diseqs) {
			break
		}
		next, ok := stepAside(val, step, lo, up)
		if !ok {
			break
		}
		val = next
		if isInt {
			val = roundToInt(val, lo, up)
		} else {
			step = new(big.Rat).Mul(step, big.NewRat(1, 2))
		}
	}
	return val
}

// pickBetween returns an initial witness strictly inside [lo, up]
// (treating a missing side as unbounded), before any disequality or
// integer rounding is applied.
func pickBetween(lo, up *Bound) *big.Rat {
	switch {
	case lo == nil && up == nil:
		return big.NewRat(0, 1)
	case lo == nil:
		return stepAwayFrom(up.Value, up.Strict, big.NewRat(-1, 1))
	case up == nil:
		return stepAwayFrom(lo.Value, lo.Strict, big.NewRat(1, 1))
	default:
		mid := new(big.Rat).Add(lo.Value, up.Value)
		mid.Quo(mid, big.NewRat(2, 1))
		return mid
	}
}

func stepAwayFrom(base *big.Rat, strict bool, dir *big.Rat) *big.Rat {
	if !strict {
		return new(big.Rat).Set(base)
	}
	return new(big.Rat).Add(base, dir)
}

// conflictsWithAny reports whether val exactly matches any recorded
// disequality.
func conflictsWithAny(val *big.Rat, diseqs []Disequality) bool {
	for _, d := range diseqs {
		if val.Cmp(d.Value) == 0 {
			return true
		}
	}
	return false
}

// stepAside tries to move val by step towards the upper bound first,
// falling back to stepping towards the lower bound, reporting false if
// neither direction has room (a bounded-fail: the caller gives up rather
// than search further).
func stepAside(val, step *big.Rat, lo, up *Bound) (*big.Rat, bool) {
	cand := new(big.Rat).Add(val, step)
	if withinUpper(cand, up) {
		return cand, true
	}
	cand = new(big.Rat).Sub(val, step)
	if withinLower(cand, lo) {
		return cand, true
	}
	return nil, false
}

// floorRat returns the greatest integer <= v.
func floorRat(v *big.Rat) *big.Int {
	return new(big.Int).Div(v.Num(), v.Denom())
}

// ceilRat returns the least integer >= v.
func ceilRat(v *big.Rat) *big.Int {
	f := floorRat(v)
	if new(big.Rat).SetInt(f).Cmp(v) == 0 {
		return f
	}
	return new(big.Int).Add(f, big.NewInt(1))
}

// roundToInt rounds val to the nearest integer (ties round up, towards
// positive infinity), then clamps the result into [lo, up].
func roundToInt(val *big.Rat, lo, up *Bound) *big.Rat {
	f := floorRat(val)
	frac := new(big.Rat).Sub(val, new(big.Rat).SetInt(f))
	chosen := f
	if frac.Cmp(big.NewRat(1, 2)) >= 0 {
		chosen = ceilRat(val)
	}
	return clampToIntBounds(new(big.Rat).SetInt(chosen), lo, up)
}

// clampToIntBounds nudges val to the nearest integer still inside [lo,
// up], used once rounding has pushed a candidate outside a strict bound.
func clampToIntBounds(val *big.Rat, lo, up *Bound) *big.Rat {
	if lo != nil && !withinLower(val, lo) {
		n := ceilRat(lo.Value)
		c := new(big.Rat).SetInt(n)
		if lo.Strict && c.Cmp(lo.Value) == 0 {
			n.Add(n, big.NewInt(1))
			c = new(big.Rat).SetInt(n)
		}
		val = c
	}
	if up != nil && !withinUpper(val, up) {
		n := floorRat(up.Value)
		c := new(big.Rat).SetInt(n)
		if up.Strict && c.Cmp(up.Value) == 0 {
			n.Sub(n, big.NewInt(1))
			c = new(big.Rat).SetInt(n)
		}
		val = c
	}
	return val
}
