// Package arith implements the linear arithmetic plugin (spec.md §4.8):
// linear constraint normalization, the assigned-variable watch manager,
// a context-dependent bounds/disequality model, unit-constraint
// propagation, and Fourier-Motzkin conflict resolution (one elimination
// per conflict; bounds are not cascaded against each other).
// No Go example in the retrieved pack implements linear arithmetic, so
// this package transliterates cvc5's mcsat fm plugin
// (original_source/src/mcsat/fm/*) into the teacher's Go idiom: dense
// slices and explicit structs in place of inheritance, math/big.Rat in
// place of CVC4::Rational, and internal/btctx's CD[T] cells in place of
// the original's hand-rolled bound-trail/undo-index bookkeeping.
package arith

import (
	"math/big"
	"sort"

	"github.com/dkarv/mcsat/internal/vardb"
)

// Relation is the comparison operator of a normalized linear constraint
// "t REL 0" (original_source/src/mcsat/fm/linear_constraint.h's Kind,
// restricted to the four kinds a LinearConstraint can hold).
type Relation int

const (
	GT Relation = iota
	GE
	EQ
	NEQ
)

func (r Relation) String() string {
	switch r {
	case GT:
		return ">"
	case GE:
		return ">="
	case EQ:
		return "="
	case NEQ:
		return "!="
	default:
		return "?"
	}
}

// Negate returns the relation such that "t Negate() 0" holds exactly when
// "t REL 0" does not (original_source's LinearConstraint::negateKind).
// GT negates to the constraint "-t >= 0", so negation is expressed by the
// caller flipping the term's sign; Negate alone only swaps strictness for
// rewriting ¬(t>0) as (-t>=0) and ¬(t>=0) as (-t>0). For (dis)equality,
// ¬(t=0) is (t!=0) and vice versa, no sign flip required.
func (r Relation) Negate() Relation {
	switch r {
	case GT:
		return GE
	case GE:
		return GT
	case EQ:
		return NEQ
	case NEQ:
		return EQ
	default:
		panic("arith: invalid relation")
	}
}

// Constraint is a normalized linear constraint "t REL 0", where t is a
// linear combination of real/integer variables (spec.md §4.8,
// original_source's LinearConstraint).
type Constraint struct {
	Coeffs map[vardb.VarIndex]*big.Rat
	Const  *big.Rat
	Rel    Relation
}

// New builds a normalized constraint. Zero-coefficient variables are
// dropped; coeffs is not retained.
func New(coeffs map[vardb.VarIndex]*big.Rat, constant *big.Rat, rel Relation) Constraint {
	c := Constraint{Coeffs: map[vardb.VarIndex]*big.Rat{}, Const: new(big.Rat).Set(constant), Rel: rel}
	for v, k := range coeffs {
		if k.Sign() == 0 {
			continue
		}
		c.Coeffs[v] = new(big.Rat).Set(k)
	}
	return c
}

// Variables returns the constraint's variables in a deterministic
// (index-sorted) order.
func (c Constraint) Variables() []vardb.VarIndex {
	vs := make([]vardb.VarIndex, 0, len(c.Coeffs))
	for v := range c.Coeffs {
		vs = append(vs, v)
	}
	sort.Slice(vs, func(i, j int) bool { return vs[i] < vs[j] })
	return vs
}

// Coefficient returns the coefficient of v, or 0 if v does not appear.
func (c Constraint) Coefficient(v vardb.VarIndex) *big.Rat {
	if k, ok := c.Coeffs[v]; ok {
		return k
	}
	return new(big.Rat)
}

// Clone returns a deep copy.
func (c Constraint) Clone() Constraint {
	out := Constraint{Coeffs: make(map[vardb.VarIndex]*big.Rat, len(c.Coeffs)), Const: new(big.Rat).Set(c.Const), Rel: c.Rel}
	for v, k := range c.Coeffs {
		out.Coeffs[v] = new(big.Rat).Set(k)
	}
	return out
}

// Negate returns the constraint equivalent to "not (c holds)": for
// (in)equalities this flips the term's sign and applies Relation.Negate
// (mirroring ¬(t>0) == (-t>=0), ¬(t>=0) == (-t>0)); for (dis)equality no
// sign flip is needed.
func (c Constraint) Negate() Constraint {
	out := c.Clone()
	switch c.Rel {
	case GT, GE:
		for v, k := range out.Coeffs {
			out.Coeffs[v] = k.Neg(k)
		}
		out.Const.Neg(out.Const)
		out.Rel = c.Rel.Negate()
	case EQ, NEQ:
		out.Rel = c.Rel.Negate()
	}
	return out
}

// Multiply scales the constraint by a positive constant, which preserves
// the relation (original_source's LinearConstraint::multiply).
func (c Constraint) Multiply(k *big.Rat) Constraint {
	if k.Sign() <= 0 {
		panic("arith: Multiply requires a positive constant")
	}
	out := c.Clone()
	for v, coef := range out.Coeffs {
		out.Coeffs[v] = coef.Mul(coef, k)
	}
	out.Const.Mul(out.Const, k)
	return out
}

// Eval substitutes values for every variable and reports the sign of t
// compared against the relation. ok is false if a needed variable is
// missing from values.
func (c Constraint) Eval(values map[vardb.VarIndex]*big.Rat) (satisfied bool, ok bool) {
	sum := new(big.Rat).Set(c.Const)
	for v, k := range c.Coeffs {
		val, has := values[v]
		if !has {
			return false, false
		}
		sum.Add(sum, new(big.Rat).Mul(k, val))
	}
	sign := sum.Sign()
	switch c.Rel {
	case GT:
		return sign > 0, true
	case GE:
		return sign >= 0, true
	case EQ:
		return sign == 0, true
	case NEQ:
		return sign != 0, true
	default:
		panic("arith: invalid relation")
	}
}

// Eliminate performs one step of Fourier-Motzkin elimination of v between
// c and other: both must have opposite-signed coefficients for v. The
// result is the combination that no longer mentions v, strict if either
// input was strict (original_source's LinearConstraint::add, specialized
// to the single-variable-cancelling case used by the resolution rule).
func (c Constraint) Eliminate(v vardb.VarIndex, other Constraint) Constraint {
	a := c.Coefficient(v)
	b := other.Coefficient(v)
	if a.Sign() == 0 || b.Sign() == 0 {
		panic("arith: Eliminate requires both constraints to mention v")
	}
	if a.Sign() == b.Sign() {
		panic("arith: Eliminate requires opposite-signed coefficients")
	}

	// Scale c by |b| and other by |a| so v's coefficients cancel exactly.
	absB := new(big.Rat).Abs(b)
	absA := new(big.Rat).Abs(a)

	scaledC := c.Multiply(absB)
	scaledOther := other.Multiply(absA)

	out := Constraint{Coeffs: map[vardb.VarIndex]*big.Rat{}, Const: new(big.Rat)}
	out.Const.Add(scaledC.Const, scaledOther.Const)
	for vi, k := range scaledC.Coeffs {
		out.Coeffs[vi] = new(big.Rat).Set(k)
	}
	for vi, k := range scaledOther.Coeffs {
		if existing, ok := out.Coeffs[vi]; ok {
			existing.Add(existing, k)
			if existing.Sign() == 0 {
				delete(out.Coeffs, vi)
			}
		} else {
			out.Coeffs[vi] = new(big.Rat).Set(k)
		}
	}
	delete(out.Coeffs, v)

	out.Rel = strictestOf(c.Rel, other.Rel)
	return out
}

// strictestOf returns GT if either input relation is strict, otherwise
// GE. Eliminate is only ever called on GT/GE constraints (bounds), never
// on EQ/NEQ.
func strictestOf(a, b Relation) Relation {
	if a == GT || b == GT {
		return GT
	}
	return GE
}

// IsFalseConstant reports whether the constraint has no variables left
// and is unsatisfiable as a constant comparison -- the signal that a
// Fourier-Motzkin elimination has found a conflict.
func (c Constraint) IsFalseConstant() bool {
	if len(c.Coeffs) != 0 {
		return false
	}
	satisfied, _ := c.Eval(nil)
	return !satisfied
}
