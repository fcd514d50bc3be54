// Package trail implements the mixed decision/propagation trail: the
// single source of truth for the partial model over both Boolean and
// arithmetic-valued variables (spec.md §4.4). It owns the backtrack
// context's level bookkeeping: every Decide opens a new scope, and PopTo is
// the only way the trail (and every context-dependent cell anchored to the
// same context) shrinks.
package trail

import (
	"fmt"
	"math/big"

	"github.com/dkarv/mcsat/internal/btctx"
	"github.com/dkarv/mcsat/internal/clausedb"
	"github.com/dkarv/mcsat/internal/lit"
	"github.com/dkarv/mcsat/internal/vardb"
)

// LBool is a lifted boolean: true, false, or unknown. Adapted directly from
// yass.LBool (internal/sat/lbool.go), generalized to describe the value of
// any Boolean-typed variable rather than only a SAT literal.
type LBool int8

const (
	Unknown LBool = 0
	True    LBool = 1
	False   LBool = -1
)

// Opposite returns the flipped lifted boolean.
func (l LBool) Opposite() LBool { return -l }

func (l LBool) String() string {
	switch l {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "unknown"
	}
}

// Kind classifies a trail element (spec.md §3, "Trail Element").
type Kind uint8

const (
	BooleanDecision Kind = iota
	SemanticDecision
	ClausalPropagation
	SemanticPropagation
)

func (k Kind) String() string {
	switch k {
	case BooleanDecision:
		return "BooleanDecision"
	case SemanticDecision:
		return "SemanticDecision"
	case ClausalPropagation:
		return "ClausalPropagation"
	case SemanticPropagation:
		return "SemanticPropagation"
	default:
		return "?"
	}
}

// Element is one entry of the trail.
type Element struct {
	Kind Kind
	Var  vardb.Variable
}

// InconsistentProp records a clausal propagation that found its literal
// already false.
type InconsistentProp struct {
	Lit    lit.Literal
	Reason clausedb.CRef
}

type perType struct {
	level    []int
	trailIdx []int
	boolVal  []LBool    // meaningful only for the Boolean type class
	rat      []*big.Rat // meaningful only for non-Boolean type classes
}

func (p *perType) grow(n int) {
	for len(p.level) < n {
		p.level = append(p.level, -1)
		p.trailIdx = append(p.trailIdx, -1)
		p.boolVal = append(p.boolVal, Unknown)
		p.rat = append(p.rat, nil)
	}
}

// Trail is the mixed Boolean/arithmetic assignment trail.
type Trail struct {
	ctx      *btctx.Context
	boolType vardb.TypeIndex

	elements    []Element
	levelStarts []int // levelStarts[i] = trail length when level i+1 was opened

	byType map[vardb.TypeIndex]*perType

	reasonMap    map[lit.Literal]clausedb.CRef
	inconsistent []InconsistentProp
}

// New returns an empty trail anchored to ctx, with boolType identifying the
// dense Boolean type class.
func New(ctx *btctx.Context, db *vardb.Database, boolType vardb.TypeIndex) *Trail {
	tr := &Trail{
		ctx:       ctx,
		boolType:  boolType,
		byType:    map[vardb.TypeIndex]*perType{},
		reasonMap: map[lit.Literal]clausedb.CRef{},
	}
	db.AddListener(tr, false)
	return tr
}

// NewVariable implements vardb.NewVariableListener: it grows this trail's
// per-type bookkeeping arrays. Variable allocation is never reverted by a
// plain pop (only by an explicit vardb.Collect), so this listener is not
// context-dependent.
func (tr *Trail) NewVariable(v vardb.Variable) {
	pt, ok := tr.byType[v.Type]
	if !ok {
		pt = &perType{}
		tr.byType[v.Type] = pt
	}
	pt.grow(int(v.Index) + 1)
}

func (tr *Trail) typeOf(t vardb.TypeIndex) *perType {
	pt, ok := tr.byType[t]
	if !ok {
		panic("trail: variable from an unregistered type class")
	}
	return pt
}

// DecisionLevel returns the current decision level.
func (tr *Trail) DecisionLevel() int {
	return len(tr.levelStarts)
}

// Size returns the total trail length.
func (tr *Trail) Size() int {
	return len(tr.elements)
}

// SizeAtLevel returns the trail length containing exactly the content
// assigned at levels [0, level].
func (tr *Trail) SizeAtLevel(level int) int {
	if level < 0 || level > len(tr.levelStarts) {
		panic(fmt.Sprintf("trail: SizeAtLevel(%d) out of range [0,%d]", level, len(tr.levelStarts)))
	}
	if level == len(tr.levelStarts) {
		return len(tr.elements)
	}
	return tr.levelStarts[level]
}

// At returns the trail element at position i.
func (tr *Trail) At(i int) Element {
	return tr.elements[i]
}

// BoolValue returns the current value of a Boolean-typed variable.
func (tr *Trail) BoolValue(v vardb.Variable) LBool {
	return tr.typeOf(v.Type).boolVal[v.Index]
}

// LitValue returns the current value of a literal.
func (tr *Trail) LitValue(l lit.Literal) LBool {
	b := tr.BoolValue(vardb.Variable{Type: tr.boolType, Index: l.VarIndex()})
	if b == Unknown || l.IsPositive() {
		return b
	}
	return b.Opposite()
}

// IsTrue reports whether l currently evaluates to true.
func (tr *Trail) IsTrue(l lit.Literal) bool { return tr.LitValue(l) == True }

// IsFalse reports whether l currently evaluates to false.
func (tr *Trail) IsFalse(l lit.Literal) bool { return tr.LitValue(l) == False }

// RatValue returns the rational value assigned to an arithmetic-typed
// variable, if any.
func (tr *Trail) RatValue(v vardb.Variable) (*big.Rat, bool) {
	r := tr.typeOf(v.Type).rat[v.Index]
	return r, r != nil
}

// IsAssigned reports whether v currently has a model value.
func (tr *Trail) IsAssigned(v vardb.Variable) bool {
	if v.Type == tr.boolType {
		return tr.BoolValue(v) != Unknown
	}
	_, ok := tr.RatValue(v)
	return ok
}

// VarDecisionLevel returns the level at which v was assigned. Panics if v
// is unassigned.
func (tr *Trail) VarDecisionLevel(v vardb.Variable) int {
	lvl := tr.typeOf(v.Type).level[v.Index]
	if lvl < 0 {
		panic("trail: VarDecisionLevel on an unassigned variable")
	}
	return lvl
}

// VarTrailIndex returns the trail index at which v was assigned. Panics if
// v is unassigned.
func (tr *Trail) VarTrailIndex(v vardb.Variable) int {
	idx := tr.typeOf(v.Type).trailIdx[v.Index]
	if idx < 0 {
		panic("trail: VarTrailIndex on an unassigned variable")
	}
	return idx
}

func (tr *Trail) setBool(v vardb.Variable, value bool) {
	pt := tr.typeOf(v.Type)
	if value {
		pt.boolVal[v.Index] = True
	} else {
		pt.boolVal[v.Index] = False
	}
}

func (tr *Trail) setLevelAndIndex(v vardb.Variable, level, idx int) {
	pt := tr.typeOf(v.Type)
	pt.level[v.Index] = level
	pt.trailIdx[v.Index] = idx
}

func (tr *Trail) push(k Kind, v vardb.Variable) {
	tr.setLevelAndIndex(v, tr.DecisionLevel(), len(tr.elements))
	tr.elements = append(tr.elements, Element{Kind: k, Var: v})
}

// AssertInitialTruths asserts the canonical true/false variables at level
// 0, the way the search is seeded before any assertion is processed.
func (tr *Trail) AssertInitialTruths(trueVar, falseVar vardb.Variable) {
	tr.setBool(trueVar, true)
	tr.push(SemanticPropagation, trueVar)
	tr.setBool(falseVar, false)
	tr.push(SemanticPropagation, falseVar)
}

// DecideLiteral opens a new decision level and asserts l as a Boolean
// decision. Panics if l's variable already has a value.
func (tr *Trail) DecideLiteral(l lit.Literal) {
	v := vardb.Variable{Type: tr.boolType, Index: l.VarIndex()}
	if tr.BoolValue(v) != Unknown {
		panic("trail: DecideLiteral on an already-assigned variable")
	}
	tr.ctx.Push()
	tr.levelStarts = append(tr.levelStarts, len(tr.elements))
	tr.setBool(v, l.IsPositive())
	tr.push(BooleanDecision, v)
}

// DecideValue opens a new decision level and asserts val for the given
// arithmetic-typed variable. Panics if v already has a value or is
// Boolean-typed.
func (tr *Trail) DecideValue(v vardb.Variable, val *big.Rat) {
	if v.Type == tr.boolType {
		panic("trail: DecideValue called on a Boolean-typed variable")
	}
	if _, ok := tr.RatValue(v); ok {
		panic("trail: DecideValue on an already-assigned variable")
	}
	tr.ctx.Push()
	tr.levelStarts = append(tr.levelStarts, len(tr.elements))
	tr.typeOf(v.Type).rat[v.Index] = val
	tr.push(SemanticDecision, v)
}

// ClausalPropagate records that l was entailed by the clause cRef (which
// contains l at any position). If l currently evaluates false, the
// conflicting propagation is recorded rather than applied; otherwise the
// trail is updated (or left alone if l is already true).
func (tr *Trail) ClausalPropagate(l lit.Literal, cRef clausedb.CRef) {
	if tr.IsFalse(l) {
		tr.inconsistent = append(tr.inconsistent, InconsistentProp{Lit: l, Reason: cRef})
		return
	}
	if tr.IsTrue(l) {
		return
	}
	v := vardb.Variable{Type: tr.boolType, Index: l.VarIndex()}
	tr.setBool(v, l.IsPositive())
	tr.push(ClausalPropagation, v)
	tr.reasonMap[l] = cRef
}

// SemanticPropagateLiteral asserts l as true by a non-clausal (semantic)
// derivation. It is idempotent if l is already true and reports failure
// (false) if l currently evaluates false.
func (tr *Trail) SemanticPropagateLiteral(l lit.Literal) bool {
	if tr.IsTrue(l) {
		return true
	}
	if tr.IsFalse(l) {
		return false
	}
	v := vardb.Variable{Type: tr.boolType, Index: l.VarIndex()}
	tr.setBool(v, l.IsPositive())
	tr.push(SemanticPropagation, v)
	return true
}

// SemanticPropagateValue asserts val for an arithmetic-typed variable by a
// non-clausal derivation (a unit linear constraint forcing a value). It is
// idempotent if v is already assigned to val and reports failure if v is
// assigned to a different value.
func (tr *Trail) SemanticPropagateValue(v vardb.Variable, val *big.Rat) bool {
	if v.Type == tr.boolType {
		panic("trail: SemanticPropagateValue called on a Boolean-typed variable")
	}
	if cur, ok := tr.RatValue(v); ok {
		return cur.Cmp(val) == 0
	}
	tr.typeOf(v.Type).rat[v.Index] = val
	tr.push(SemanticPropagation, v)
	return true
}

// HasReason reports whether l has a registered clausal reason.
func (tr *Trail) HasReason(l lit.Literal) bool {
	_, ok := tr.reasonMap[l]
	return ok
}

// Reason returns the clause that entailed l via ClausalPropagate.
func (tr *Trail) Reason(l lit.Literal) clausedb.CRef {
	return tr.reasonMap[l]
}

// InconsistentPropagations returns the clausal propagations that found
// their literal already false since the last PopTo.
func (tr *Trail) InconsistentPropagations() []InconsistentProp {
	return tr.inconsistent
}

func (tr *Trail) trueLiteralOf(v vardb.Variable) lit.Literal {
	if tr.BoolValue(v) == True {
		return lit.Positive(v.Index)
	}
	return lit.Negative(v.Index)
}

// PopTo pops decisions until the current level equals level, returning the
// variables that were unset, in LIFO (most-recently-assigned-first) order.
func (tr *Trail) PopTo(level int) []vardb.Variable {
	if level > tr.DecisionLevel() {
		panic("trail: PopTo above the current level")
	}
	var unset []vardb.Variable
	for tr.DecisionLevel() > level {
		start := tr.levelStarts[len(tr.levelStarts)-1]
		for i := len(tr.elements) - 1; i >= start; i-- {
			v := tr.elements[i].Var
			if v.Type == tr.boolType {
				delete(tr.reasonMap, tr.trueLiteralOf(v))
				tr.typeOf(v.Type).boolVal[v.Index] = Unknown
			} else {
				tr.typeOf(v.Type).rat[v.Index] = nil
			}
			tr.typeOf(v.Type).level[v.Index] = -1
			tr.typeOf(v.Type).trailIdx[v.Index] = -1
			unset = append(unset, v)
		}
		tr.elements = tr.elements[:start]
		tr.levelStarts = tr.levelStarts[:len(tr.levelStarts)-1]
	}
	tr.inconsistent = nil
	tr.ctx.PopTo(level)
	return unset
}
