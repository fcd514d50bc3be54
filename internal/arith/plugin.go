package arith

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/dkarv/mcsat/internal/btctx"
	"github.com/dkarv/mcsat/internal/clausedb"
	"github.com/dkarv/mcsat/internal/lit"
	"github.com/dkarv/mcsat/internal/solver"
	"github.com/dkarv/mcsat/internal/trail"
	"github.com/dkarv/mcsat/internal/vardb"
	"github.com/dkarv/mcsat/internal/watch"
)

// unassignedStatus classifies how many of a registered constraint's real
// variables currently lack a trail value (spec.md §4.8's
// UnassignedStatus): statusNone once every variable has a value,
// statusUnit once exactly one remains, statusUnknown for two or more.
type unassignedStatus int

const (
	statusUnknown unassignedStatus = iota
	statusUnit
	statusNone
)

// registeredConstraint is one constraint's entry in the Assigned Watch
// Manager (spec.md §4.8, grounded on
// original_source/src/mcsat/fm/assigned_watch_manager.h): its normalized
// form, the Boolean atom standing for its truth, its real variables
// ordered so the first two are always the watched pair, and its cached
// status.
type registeredConstraint struct {
	con     Constraint
	atomVar vardb.VarIndex
	vars    []vardb.VarIndex
	status  unassignedStatus
}

// alwaysInUse treats every watch entry as live: registeredConstraints are
// only ever dropped from a particular key by being swapped to a different
// one, never invalidated outright, so watch.List's lazy-cleanup machinery
// has nothing to purge here.
type alwaysInUse[E any] struct{}

func (alwaysInUse[E]) InUse(E) bool { return true }

// Plugin is the linear arithmetic theory solver (spec.md §4.8). It
// propagates and explains linear constraints of any arity via a general
// assigned-variable watch manager: a constraint becomes "unit" once every
// variable but one has a trail value, at which point its single remaining
// variable's bound is derived algebraically from the others' concrete
// values and the constraint's own asserted truth. A bound conflict is
// explained by a single Fourier-Motzkin elimination between the
// conflicting lower and upper bound (FourierMotzkinRule); bounds are not
// cascaded against each other. No Go example in the pack does linear arithmetic, so
// the watch-manager shape follows
// original_source/src/mcsat/fm/assigned_watch_manager.h rather than any
// teacher file.
type Plugin struct {
	vdb      *vardb.Database
	cdb      *clausedb.Database
	tr       *trail.Trail
	boolType vardb.TypeIndex
	realType vardb.TypeIndex

	bounds *BoundsModel
	fm     *FourierMotzkinRule

	atomOf    map[vardb.VarIndex]*registeredConstraint
	litByKey  map[string]lit.Literal
	watchers  *watch.List[vardb.VarIndex, *registeredConstraint]
	order     *valueOrder
	isInteger map[vardb.VarIndex]bool

	// pending holds constraints whose variables were all already assigned
	// at registration time (spec.md §4.8's delayedPropagations), drained on
	// the next Propagate call.
	pending []*registeredConstraint

	qHead int
}

// NewPlugin constructs the arithmetic plugin. realType identifies the
// dense variable-type class holding arithmetic variables (distinct from
// boolType, which identifies atoms); both databases and the trail are
// shared with the rest of the solver.
func NewPlugin(ctx *btctx.Context, vdb *vardb.Database, cdb *clausedb.Database, tr *trail.Trail, boolType, realType vardb.TypeIndex) *Plugin {
	p := &Plugin{
		vdb:       vdb,
		cdb:       cdb,
		tr:        tr,
		boolType:  boolType,
		realType:  realType,
		bounds:    NewBoundsModel(ctx),
		fm:        NewFourierMotzkinRule(cdb),
		atomOf:    map[vardb.VarIndex]*registeredConstraint{},
		litByKey:  map[string]lit.Literal{},
		watchers:  watch.NewList[vardb.VarIndex, *registeredConstraint](alwaysInUse[*registeredConstraint]{}),
		order:     newValueOrder(),
		isInteger: map[vardb.VarIndex]bool{},
	}
	vdb.AddListener(p, false)
	return p
}

// Name implements solver.Plugin.
func (p *Plugin) Name() string { return "mcsat::fm_plugin" }

// NewVariable implements vardb.NewVariableListener: newly created
// arithmetic variables join the decision order.
func (p *Plugin) NewVariable(v vardb.Variable) {
	if v.Type == p.realType {
		p.order.addVar(v.Index)
	}
}

// MarkInteger records that v ranges over the integers rather than the
// rationals, so that Decide's value selection rounds instead of picking
// fractional witnesses (spec.md §8's "Integer-typed decisions return
// integer-valued picks").
func (p *Plugin) MarkInteger(v vardb.VarIndex) {
	p.isInteger[v] = true
}

// realVar packs idx into a full vardb.Variable of this plugin's real type
// class, the form the trail's value-query methods need.
func (p *Plugin) realVar(idx vardb.VarIndex) vardb.Variable {
	return vardb.Variable{Type: p.realType, Index: idx}
}

func (p *Plugin) atomVar(idx vardb.VarIndex) vardb.Variable {
	return vardb.Variable{Type: p.boolType, Index: idx}
}

// canonicalKey deterministically encodes a normalized constraint so that
// asserting the same constraint twice reuses its surrogate atom (mirroring
// internal/vardb.Database.Variable's own term-based deduplication, one
// level up).
func canonicalKey(c Constraint) string {
	var b strings.Builder
	for _, v := range c.Variables() {
		fmt.Fprintf(&b, "%d:%s;", v, c.Coefficient(v).RatString())
	}
	fmt.Fprintf(&b, "|%s|%s", c.Const.RatString(), c.Rel)
	return b.String()
}

// Assert registers c as an arithmetic atom (allocating a fresh surrogate
// Boolean variable the first time c is seen) and returns the literal that
// means "c holds". Its negation, via internal/lit's shared dense Boolean
// class, means "c does not hold" and is handled as c.Negate() once
// assigned.
func (p *Plugin) Assert(c Constraint) lit.Literal {
	key := canonicalKey(c)
	if l, ok := p.litByKey[key]; ok {
		return l
	}
	v := p.vdb.Variable(p.boolType, key)
	l := lit.Positive(v.Index)

	rc := &registeredConstraint{con: c.Clone(), atomVar: v.Index, vars: c.Variables()}
	p.register(rc)

	p.atomOf[v.Index] = rc
	p.litByKey[key] = l
	return l
}

// register runs one constraint through the Assigned Watch Manager's
// newConstraint steps (spec.md §4.8): sort its variables unassigned-first,
// watch the first two, compute the initial status, and queue it for
// immediate evaluation if every variable already has a value.
func (p *Plugin) register(rc *registeredConstraint) {
	p.reorderVars(rc.vars)
	if len(rc.vars) >= 1 {
		p.watchers.Add(rc.vars[0], rc)
	}
	if len(rc.vars) >= 2 {
		p.watchers.Add(rc.vars[1], rc)
	}
	rc.status = p.computeInitialStatus(rc)
	if rc.status == statusNone {
		p.pending = append(p.pending, rc)
	}
}

// reorderVars sorts vars by varAssignCompare: unassigned first; among
// assigned variables, higher decision level first.
func (p *Plugin) reorderVars(vars []vardb.VarIndex) {
	sort.SliceStable(vars, func(i, j int) bool {
		return p.varAssignLess(vars[i], vars[j])
	})
}

func (p *Plugin) varAssignLess(a, b vardb.VarIndex) bool {
	aAssigned := p.tr.IsAssigned(p.realVar(a))
	bAssigned := p.tr.IsAssigned(p.realVar(b))
	if aAssigned != bAssigned {
		return !aAssigned
	}
	if !aAssigned {
		return false
	}
	return p.tr.VarDecisionLevel(p.realVar(a)) > p.tr.VarDecisionLevel(p.realVar(b))
}

func (p *Plugin) computeInitialStatus(rc *registeredConstraint) unassignedStatus {
	if len(rc.vars) == 0 {
		return statusNone
	}
	if !p.tr.IsAssigned(p.realVar(rc.vars[0])) {
		if len(rc.vars) == 1 || p.tr.IsAssigned(p.realVar(rc.vars[1])) {
			return statusUnit
		}
		return statusUnknown
	}
	return statusNone
}

// Propagate implements solver.Plugin: it first drains constraints that
// were already fully assigned when registered, then scans newly assigned
// trail elements (both Boolean atoms and real variables) since the last
// call, deriving every bound/disequality/conflict that follows
// immediately.
func (p *Plugin) Propagate(tok *solver.PropagationToken) {
	for _, rc := range p.pending {
		p.evaluateConstraint(rc, tok)
		if tok.HasConflict() {
			return
		}
	}
	p.pending = nil

	for p.qHead < p.tr.Size() {
		el := p.tr.At(p.qHead)
		p.qHead++
		switch el.Var.Type {
		case p.boolType:
			p.onAtomAssigned(el.Var, tok)
		case p.realType:
			p.onVarAssigned(el.Var.Index, tok)
		}
		if tok.HasConflict() {
			return
		}
	}
}

// Check implements solver.Plugin. Every conflict this plugin can derive
// is already found eagerly in Propagate, so there is nothing left to do
// on a full check.
func (p *Plugin) Check(tok *solver.PropagationToken) {}

// onAtomAssigned reacts to a constraint's own Boolean atom getting a
// trail value: if the constraint is already unit, its remaining variable
// can now be solved for directly; if every variable was already assigned,
// the atom's value must agree with evaluating them.
func (p *Plugin) onAtomAssigned(v vardb.Variable, tok *solver.PropagationToken) {
	rc, ok := p.atomOf[v.Index]
	if !ok {
		return
	}
	switch rc.status {
	case statusUnit:
		p.processUnitConstraint(rc, tok)
	case statusNone:
		p.checkEvaluationConsistency(rc, tok)
	}
}

// onVarAssigned walks every registered constraint currently watching the
// real variable that just received a trail value, advancing its watched
// pair and status per spec.md §4.8's Assigned Watch Manager: look for a
// still-unassigned variable among the rest to take over the watch;
// failing that, the constraint's status tightens to Unit or None.
func (p *Plugin) onVarAssigned(assigned vardb.VarIndex, tok *solver.PropagationToken) {
	it := p.watchers.Iter(assigned)
	for {
		rc, ok := it.Next()
		if !ok {
			break
		}

		if len(rc.vars) == 1 {
			it.Keep(rc)
			rc.status = statusNone
			p.evaluateConstraint(rc, tok)
			if tok.HasConflict() {
				it.Rest()
				return
			}
			continue
		}

		if rc.vars[0] == assigned {
			rc.vars[0], rc.vars[1] = rc.vars[1], rc.vars[0]
		}

		replaced := false
		for j := 2; j < len(rc.vars); j++ {
			if !p.tr.IsAssigned(p.realVar(rc.vars[j])) {
				rc.vars[1], rc.vars[j] = rc.vars[j], rc.vars[1]
				p.watchers.Add(rc.vars[1], rc)
				replaced = true
				break
			}
		}
		if replaced {
			continue
		}

		it.Keep(rc)
		if p.tr.IsAssigned(p.realVar(rc.vars[0])) {
			rc.status = statusNone
			p.evaluateConstraint(rc, tok)
		} else {
			rc.status = statusUnit
			if p.tr.IsAssigned(p.atomVar(rc.atomVar)) {
				p.processUnitConstraint(rc, tok)
			}
		}
		if tok.HasConflict() {
			it.Rest()
			return
		}
	}
	it.Finish()
}

// soleUnassigned returns rc's single unassigned variable, or ok=false if
// that is no longer the case (a defensive check: callers only reach here
// when status says Unit).
func (p *Plugin) soleUnassigned(rc *registeredConstraint) (vardb.VarIndex, bool) {
	found := vardb.VarIndex(0)
	count := 0
	for _, v := range rc.vars {
		if !p.tr.IsAssigned(p.realVar(v)) {
			found = v
			count++
		}
	}
	return found, count == 1
}

// valuesOf gathers the trail value of every variable c mentions, for Eval.
func (p *Plugin) valuesOf(c Constraint) map[vardb.VarIndex]*big.Rat {
	values := make(map[vardb.VarIndex]*big.Rat, len(c.Coeffs))
	for v := range c.Coeffs {
		if val, ok := p.tr.RatValue(p.realVar(v)); ok {
			values[v] = val
		}
	}
	return values
}

// substituteAllBut folds every variable of c other than x into the
// constant term using its concrete trail value, leaving a single-variable
// constraint in x (spec.md §4.8's processUnitConstraint: "Compute sum =
// Σ bⱼ·value(vⱼ) + k").
func (p *Plugin) substituteAllBut(c Constraint, x vardb.VarIndex) Constraint {
	constant := new(big.Rat).Set(c.Const)
	coeffs := map[vardb.VarIndex]*big.Rat{}
	for v, k := range c.Coeffs {
		if v == x {
			coeffs[v] = new(big.Rat).Set(k)
			continue
		}
		val, ok := p.tr.RatValue(p.realVar(v))
		if !ok {
			panic("arith: substituteAllBut requires every variable but x to have a trail value")
		}
		constant.Add(constant, new(big.Rat).Mul(k, val))
	}
	return New(coeffs, constant, c.Rel)
}

// processUnitConstraint derives the bound (or disequality, or conflict)
// that rc's single remaining unassigned variable must satisfy, given the
// concrete trail values of every other variable and rc's own asserted
// truth (spec.md §4.8's processUnitConstraint, generalized to arbitrary
// arity).
func (p *Plugin) processUnitConstraint(rc *registeredConstraint, tok *solver.PropagationToken) {
	x, ok := p.soleUnassigned(rc)
	if !ok {
		return
	}
	val := p.tr.BoolValue(p.atomVar(rc.atomVar))
	if val == trail.Unknown {
		return
	}

	asserted := rc.con
	reason := lit.Positive(rc.atomVar)
	if val == trail.False {
		asserted = rc.con.Negate()
		reason = lit.Negative(rc.atomVar)
	}

	reduced := p.substituteAllBut(asserted, x)
	switch reduced.Rel {
	case GE, GT:
		b, isLower, ok := unitBoundFromConstraint(reduced, x)
		if !ok {
			return
		}
		b.Reason = []lit.Literal{reason}
		p.installBound(x, b, isLower, tok)
	case EQ:
		val := exactValueOf(reduced, x)
		b := Bound{Value: val, Strict: false, Reason: []lit.Literal{reason}}
		p.installBound(x, b, true, tok)
		if tok.HasConflict() {
			return
		}
		p.installBound(x, b, false, tok)
	case NEQ:
		val := exactValueOf(reduced, x)
		p.bounds.AddDisequality(x, Disequality{Value: val, Reason: reason})
		p.checkDisequality(x, tok)
	}
}

// evaluateConstraint fires once every variable rc mentions has a trail
// value: either the atom is still unknown, in which case its truth is
// forced by semantic propagation, or it is already known and must agree
// (checkEvaluationConsistency).
func (p *Plugin) evaluateConstraint(rc *registeredConstraint, tok *solver.PropagationToken) {
	if p.tr.IsAssigned(p.atomVar(rc.atomVar)) {
		p.checkEvaluationConsistency(rc, tok)
		return
	}
	sat, ok := rc.con.Eval(p.valuesOf(rc.con))
	if !ok {
		return
	}
	forced := lit.Positive(rc.atomVar)
	if !sat {
		forced = lit.Negative(rc.atomVar)
	}
	if !p.tr.SemanticPropagateLiteral(forced) {
		// Unreachable in a sound run: a constraint only ever reaches "every
		// variable assigned" after becoming Unit, at which point
		// processUnitConstraint already pinned a bound respecting this
		// constraint's truth before Decide ever touched the last variable.
		panic("arith: evaluated constraint disagrees with its already-false atom")
	}
}

// checkEvaluationConsistency verifies that rc's already-known atom value
// agrees with evaluating its now fully-assigned variables. See
// evaluateConstraint: this mismatch is a genuine invariant violation, not
// a reachable search state.
func (p *Plugin) checkEvaluationConsistency(rc *registeredConstraint, tok *solver.PropagationToken) {
	sat, ok := rc.con.Eval(p.valuesOf(rc.con))
	if !ok {
		return
	}
	if sat != p.tr.IsTrue(lit.Positive(rc.atomVar)) {
		panic("arith: constraint evaluation disagrees with its already-assigned atom")
	}
}

func (p *Plugin) installBound(v vardb.VarIndex, b Bound, isLower bool, tok *solver.PropagationToken) {
	var installed bool
	if isLower {
		installed = p.bounds.UpdateLower(v, b)
	} else {
		installed = p.bounds.UpdateUpper(v, b)
	}
	if !installed {
		return
	}
	if p.bounds.InConflict(v) {
		p.reportBoundConflict(v, tok)
		return
	}
	p.checkDisequality(v, tok)
}

func (p *Plugin) checkDisequality(v vardb.VarIndex, tok *solver.PropagationToken) {
	lo := p.bounds.Lower(v)
	up := p.bounds.Upper(v)
	if lo == nil || up == nil || lo.Strict || up.Strict {
		return
	}
	if lo.Value.Cmp(up.Value) != 0 {
		return
	}
	dq, found := p.bounds.ConflictsWithDisequality(v, lo.Value)
	if !found {
		return
	}
	reasons := append(append([]lit.Literal{}, lo.Reason...), up.Reason...)
	p.fm.Start(New(nil, big.NewRat(0, 1), GE), reasons[0])
	for _, l := range reasons[1:] {
		p.fm.Assume(l)
	}
	p.fm.Assume(dq.Reason)
	ref, _ := p.fm.Finish()
	tok.Conflict(ref)
}

func (p *Plugin) reportBoundConflict(v vardb.VarIndex, tok *solver.PropagationToken) {
	lo := p.bounds.Lower(v)
	up := p.bounds.Upper(v)
	loC := boundAsConstraint(v, lo, true)
	upC := boundAsConstraint(v, up, false)
	p.fm.Start(loC, lo.Reason[0])
	for _, l := range lo.Reason[1:] {
		p.fm.Assume(l)
	}
	p.fm.ResolveMany(v, upC, up.Reason)
	ref, _ := p.fm.Finish()
	tok.Conflict(ref)
}

// Unassigned notifies the plugin that v has just been popped off the
// trail by the core's backtrack. Per spec.md §4.8's backjump handling, for
// every registered constraint currently watching v its cached status
// relaxes one notch (None -> Unit, Unit -> Unknown unless it has at most
// one variable, which always stays Unit); a constraint that is not
// currently watching v needs no update, since its status can only already
// be Unknown (the floor) once it has more than two unassigned variables.
// Bound/disequality state needs no such notice: it lives in btctx.CD
// cells anchored to the same context the trail backtracks through, so it
// reverts on its own.
func (p *Plugin) Unassigned(v vardb.Variable, _ bool) {
	if v.Type != p.realType {
		return
	}
	p.order.reinsert(v.Index)
	p.pending = nil
	for _, rc := range p.watchers.Get(v.Index) {
		switch rc.status {
		case statusNone:
			rc.status = statusUnit
		case statusUnit:
			if len(rc.vars) > 1 {
				rc.status = statusUnknown
			}
		}
	}
}

// ResetQueueHead rewinds the propagation cursor to replay the trail from
// position i, used by the core right after a backtrack.
func (p *Plugin) ResetQueueHead(i int) {
	if i < p.qHead {
		p.qHead = i
	}
}

// Decide implements solver.Decider: it picks an unassigned arithmetic
// variable in activity order and commits a value within its current
// bounds, steering clear of any recorded disequality and rounding to an
// integer if the variable is integer-typed.
func (p *Plugin) Decide(tr *trail.Trail) bool {
	v, ok := p.order.next(func(idx vardb.VarIndex) bool {
		return tr.IsAssigned(p.realVar(idx))
	})
	if !ok {
		return false
	}
	val := p.pickValue(v)
	tr.DecideValue(p.realVar(v), val)
	return true
}

// exactValueOf returns the single value that satisfies c's equality (or
// disequality) form for v: -const/coeff.
func exactValueOf(c Constraint, v vardb.VarIndex) *big.Rat {
	val := new(big.Rat).Neg(c.Const)
	val.Quo(val, c.Coefficient(v))
	return val
}

// unitBoundFromConstraint reads off the single-variable bound implied by
// "coeff*v + const REL 0": v REL(-const/coeff), a lower bound if coeff is
// positive (dividing preserves direction) and an upper bound if negative
// (dividing flips it). Only valid for GE/GT constraints (the only
// relations Eliminate and direct unit-bound assertion ever produce).
func unitBoundFromConstraint(c Constraint, v vardb.VarIndex) (Bound, bool, bool) {
	coeff := c.Coefficient(v)
	if coeff.Sign() == 0 {
		return Bound{}, false, false
	}
	val := exactValueOf(c, v)
	return Bound{Value: val, Strict: c.Rel == GT}, coeff.Sign() > 0, true
}

// boundAsConstraint is the inverse of unitBoundFromConstraint: it
// reconstructs the linear constraint a bound came from, so it can be
// combined arithmetically with another constraint via Eliminate.
func boundAsConstraint(v vardb.VarIndex, b *Bound, isLower bool) Constraint {
	rel := GE
	if b.Strict {
		rel = GT
	}
	if isLower {
		return New(map[vardb.VarIndex]*big.Rat{v: big.NewRat(1, 1)}, new(big.Rat).Neg(b.Value), rel)
	}
	return New(map[vardb.VarIndex]*big.Rat{v: big.NewRat(-1, 1)}, new(big.Rat).Set(b.Value), rel)
}
