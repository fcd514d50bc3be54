// Package rules implements the Proof Rules (spec.md §4.6): the only
// entities allowed to create clauses. Grounded on
// original_source/src/mcsat/rules/{proof_rule,resolution_rule}.{h,cpp}.
// FourierMotzkinRule is not implemented here: it needs the LinearConstraint
// type owned by internal/arith, so it lives there embedding Base, the way
// cvc5's FourierMotzkinRule subclasses ProofRule.
package rules

import (
	"sort"

	"github.com/dkarv/mcsat/internal/clausedb"
	"github.com/dkarv/mcsat/internal/lit"
	"github.com/dkarv/mcsat/internal/trail"
)

// Base is the procedural part shared by every proof rule: a registered rule
// id with the clause database and a commit primitive that actually creates
// the clause. Rules are created once, at plugin-construction time, and
// reused for every application.
type Base struct {
	db      *clausedb.Database
	ruleID  uint8
	applied int
}

// NewBase registers name as a rule with db and returns the shared base.
func NewBase(db *clausedb.Database, name string) Base {
	return Base{db: db, ruleID: db.RegisterRule(name)}
}

// Applications returns how many times Commit has been called.
func (b *Base) Applications() int {
	return b.applied
}

// Commit creates the clause in the underlying database, counting the
// application.
func (b *Base) Commit(literals []lit.Literal) clausedb.CRef {
	b.applied++
	return b.db.NewClause(literals, b.ruleID)
}

// InputClauseRule adds a user-supplied clause, simplified against the
// current trail: duplicate literals are dropped, a clause containing a
// literal and its negation is a tautology and ignored, literals already
// false on the trail are dropped, and a clause containing an already-true
// literal is itself trivially satisfied and ignored.
type InputClauseRule struct {
	Base
	trail *trail.Trail
}

// NewInputClauseRule constructs the rule against db and tr.
func NewInputClauseRule(db *clausedb.Database, tr *trail.Trail) *InputClauseRule {
	return &InputClauseRule{Base: NewBase(db, "mcsat::input_clause_rule"), trail: tr}
}

// Apply simplifies literals against the trail and commits the result.
// Returns clausedb.Null if the clause is a tautology or already satisfied.
func (r *InputClauseRule) Apply(literals []lit.Literal) clausedb.CRef {
	sorted := append([]lit.Literal(nil), literals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	kept := sorted[:0]
	havePrev := false
	var prev lit.Literal
	for _, l := range sorted {
		if havePrev && l == prev {
			continue // duplicate
		}
		if havePrev && l == prev.Opposite() {
			return clausedb.Null // tautology
		}
		if r.trail.IsTrue(l) {
			return clausedb.Null // clause already satisfied
		}
		if r.trail.IsFalse(l) {
			continue // drop known-false literal
		}
		kept = append(kept, l)
		prev = l
		havePrev = true
	}

	return r.Commit(kept)
}

// BooleanResolutionRule derives a clause by repeated Boolean resolution,
// used in sequence to build up one resolution proof (e.g. the learnt
// clause of conflict analysis). Start, then Resolve once per antecedent
// clause, then Finish.
type BooleanResolutionRule struct {
	Base
	literals map[lit.Literal]bool // membership test; order keeps insertion order
	order    []lit.Literal
}

// NewBooleanResolutionRule constructs the rule against db.
func NewBooleanResolutionRule(db *clausedb.Database) *BooleanResolutionRule {
	return &BooleanResolutionRule{Base: NewBase(db, "mcsat::resolution_rule"), literals: map[lit.Literal]bool{}}
}

// Start seeds the resolution with the literals of the initial clause.
func (r *BooleanResolutionRule) Start(initial []lit.Literal) {
	r.literals = map[lit.Literal]bool{}
	r.order = nil
	for _, l := range initial {
		r.insert(l)
	}
}

func (r *BooleanResolutionRule) insert(l lit.Literal) {
	if !r.literals[l] {
		r.order = append(r.order, l)
	}
	r.literals[l] = true
}

func (r *BooleanResolutionRule) remove(l lit.Literal) {
	if r.literals[l] {
		delete(r.literals, l)
		for i, o := range r.order {
			if o == l {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
}

// Literals returns the derivation's current literals, for callers that need
// to inspect an in-progress resolution (e.g. to pick the next pivot).
func (r *BooleanResolutionRule) Literals() []lit.Literal {
	return append([]lit.Literal(nil), r.order...)
}

// Resolve resolves the current derivation with clauseLits over the literal
// at literalIndex: that literal's negation must currently be present and is
// removed, and every other literal of clauseLits is added.
func (r *BooleanResolutionRule) Resolve(clauseLits []lit.Literal, literalIndex int) {
	pivot := clauseLits[literalIndex]
	if !r.literals[pivot.Opposite()] {
		panic("rules: resolution pivot not present in current derivation")
	}
	r.remove(pivot.Opposite())
	for i, l := range clauseLits {
		if i == literalIndex {
			continue
		}
		r.insert(l)
	}
}

// Finish commits the accumulated literals, in insertion order, as a new
// clause, resetting the rule for reuse. An empty derivation commits the
// empty clause; no false literal is added to it.
func (r *BooleanResolutionRule) Finish() clausedb.CRef {
	lits := append([]lit.Literal(nil), r.order...)
	ref := r.Commit(lits)
	r.literals = map[lit.Literal]bool{}
	r.order = nil
	return ref
}
