// Package lit defines Literal, a Boolean variable paired with a polarity
// bit, indexed the way yass.Literal is (spec.md §3, "Literal").
//
// Literal indexing only ever applies to the dense Boolean type class: every
// atom the solver reasons about propositionally -- a plain Boolean atom or
// the surrogate variable standing for an arithmetic constraint -- is
// allocated in that one type class, exactly as cvc5's mcsat gives every
// atom a Boolean "constraint variable". Non-Boolean (arithmetic) variables
// live in their own vardb type classes and are never wrapped in a Literal.
package lit

import (
	"fmt"

	"github.com/dkarv/mcsat/internal/vardb"
)

// Literal is a (Variable, negated) pair over the Boolean type class, packed
// as 2*varIndex + neg so it can index directly into per-literal arrays.
type Literal int32

// Null is the distinguished non-literal value.
const Null Literal = -1

// Of returns the literal for variable v with the given polarity.
func Of(v vardb.VarIndex, negated bool) Literal {
	if negated {
		return Literal(v<<1 | 1)
	}
	return Literal(v << 1)
}

// Positive returns the positive literal for v.
func Positive(v vardb.VarIndex) Literal { return Of(v, false) }

// Negative returns the negative literal for v.
func Negative(v vardb.VarIndex) Literal { return Of(v, true) }

// VarIndex returns the index of the literal's variable within the Boolean
// type class.
func (l Literal) VarIndex() vardb.VarIndex {
	return vardb.VarIndex(l >> 1)
}

// Variable returns the full vardb.Variable for l, given the dense id of the
// Boolean type class.
func (l Literal) Variable(boolType vardb.TypeIndex) vardb.Variable {
	return vardb.Variable{Type: boolType, Index: l.VarIndex()}
}

// IsPositive reports whether l is the unnegated literal of its variable.
func (l Literal) IsPositive() bool {
	return l&1 == 0
}

// Opposite returns the negation of l.
func (l Literal) Opposite() Literal {
	return l ^ 1
}

// Index returns the literal's position for use as an array index (2*varIndex+neg).
func (l Literal) Index() int {
	return int(l)
}

func (l Literal) String() string {
	if l == Null {
		return "<null>"
	}
	if l.IsPositive() {
		return fmt.Sprintf("%d", l.VarIndex())
	}
	return fmt.Sprintf("!%d", l.VarIndex())
}
