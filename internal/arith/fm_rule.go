package arith

import (
	"github.com/dkarv/mcsat/internal/clausedb"
	"github.com/dkarv/mcsat/internal/lit"
	"github.com/dkarv/mcsat/internal/rules"
	"github.com/dkarv/mcsat/internal/vardb"
)

// FourierMotzkinRule derives a new bound (or a conflict, when the
// resolvent collapses to a false constant) by eliminating variables one
// at a time between a chain of linear inequalities. Grounded on
// original_source/src/mcsat/rules/fourier_motzkin_rule.{h,cpp}: start,
// then Resolve once per eliminated variable, then Finish. Unlike
// BooleanResolutionRule (internal/rules), the accumulated explanation is
// never one of the assumption literals itself -- every assumption stays
// an assumption -- so no pivot removal is needed, only accumulation.
type FourierMotzkinRule struct {
	rules.Base
	resolvent   Constraint
	assumptions map[lit.Literal]bool
	order       []lit.Literal
}

// NewFourierMotzkinRule constructs the rule against db.
func NewFourierMotzkinRule(db *clausedb.Database) *FourierMotzkinRule {
	return &FourierMotzkinRule{Base: rules.NewBase(db, "mcsat::fourier_motzkin_rule"), assumptions: map[lit.Literal]bool{}}
}

// Start seeds the derivation with the first inequality and the literal
// that asserts it.
func (r *FourierMotzkinRule) Start(ineq Constraint, reason lit.Literal) {
	r.resolvent = ineq.Clone()
	r.assumptions = map[lit.Literal]bool{}
	r.order = nil
	r.addAssumption(reason)
}

func (r *FourierMotzkinRule) addAssumption(l lit.Literal) {
	if !r.assumptions[l] {
		r.order = append(r.order, l)
		r.assumptions[l] = true
	}
}

// Resolve eliminates v between the current resolvent and ineq (which must
// be asserted by reason), accumulating reason as an assumption.
func (r *FourierMotzkinRule) Resolve(v vardb.VarIndex, ineq Constraint, reason lit.Literal) {
	r.resolvent = r.resolvent.Eliminate(v, ineq)
	r.addAssumption(reason)
}

// ResolveMany is Resolve for the case where ineq's truth is itself implied
// by several literals at once (a bound whose Bound.Reason has more than
// one entry) rather than a single
// directly-asserted literal.
func (r *FourierMotzkinRule) ResolveMany(v vardb.VarIndex, ineq Constraint, reasons []lit.Literal) {
	r.resolvent = r.resolvent.Eliminate(v, ineq)
	for _, reason := range reasons {
		r.addAssumption(reason)
	}
}

// Assume adds reason to the assumption set without performing an
// elimination step, for conflicts whose validity needs no further
// arithmetic combination (e.g. an equality bound colliding with a
// disequality): the resolvent carried by Start/Resolve already proves the
// contradiction, and reason only needs to be cited in the explanation.
func (r *FourierMotzkinRule) Assume(reason lit.Literal) {
	r.addAssumption(reason)
}

// Finish commits the explanation clause -- the disjunction of the
// negations of every assumption literal -- and returns it together with
// the final resolvent. If the resolvent IsFalseConstant, the clause is a
// genuine conflict: every assumption is true on the trail, so every
// disjunct is false. Otherwise the resolvent is a new bound implied by
// the assumptions, and the caller is responsible for turning it into a
// propagated Bound.
func (r *FourierMotzkinRule) Finish() (clausedb.CRef, Constraint) {
	lits := make([]lit.Literal, len(r.order))
	for i, l := range r.order {
		lits[i] = l.Opposite()
	}
	ref := r.Commit(lits)
	resolvent := r.resolvent
	r.resolvent = Constraint{}
	r.assumptions = map[lit.Literal]bool{}
	r.order = nil
	return ref, resolvent
}
