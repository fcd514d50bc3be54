// Solver implements the Solver Core Loop (spec.md §4.9): plugin
// registration, feature dispatch, request handling, and Boolean first-UIP
// conflict analysis, uniformly over both BCP-discovered and plugin-
// reported conflicts. Grounded on yass.Solver.Search/analyze/record/
// ReduceDB/BumpClaActivity (internal/sat/solver.go) for the loop shape and
// learnt-clause scoring, restructured from "the one monolithic solver
// owning assignment state" to "a core that dispatches Propagate/Check/
// Decide across a registered plugin set", per original_source/src/mcsat/
// solver.{h,cpp}'s check() and plugin/solver_plugin.h's dispatch contract.
package solver

import (
	"sort"

	"github.com/dkarv/mcsat/internal/btctx"
	"github.com/dkarv/mcsat/internal/clausedb"
	"github.com/dkarv/mcsat/internal/lit"
	"github.com/dkarv/mcsat/internal/rules"
	"github.com/dkarv/mcsat/internal/trail"
	"github.com/dkarv/mcsat/internal/vardb"
)

// Result is the outcome of Check.
type Result int

const (
	Unknown Result = iota
	Sat
	Unsat
)

func (r Result) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Optional plugin capabilities, detected by AddPlugin via type assertion
// (spec.md §4.9's "feature dispatch tables"): a plugin implements whichever
// of these apply to it. bcp.Engine implements all of them; arith.Plugin
// implements only unassignNotifiee and queueResetter.
type bumper interface {
	BumpVariable(l lit.Literal)
}

type decayer interface {
	DecayVariables()
}

type unassignNotifiee interface {
	Unassigned(v vardb.Variable, wasTrue bool)
}

type queueResetter interface {
	ResetQueueHead(i int)
}

type restartScheduler interface {
	NextRestartBound() int
}

// Options configures the core loop's learnt-clause scoring and
// housekeeping cadence, mirroring yass.Options' ClauseDecay field.
type Options struct {
	ClauseDecay      float64
	ReduceDBInterval int
}

// DefaultOptions mirrors yass.DefaultOptions' clause-decay default.
var DefaultOptions = Options{
	ClauseDecay:      0.999,
	ReduceDBInterval: 512,
}

// Solver drives the search over a shared trail, dispatching to every
// registered Plugin and arbitrating Deciders (spec.md §4.9).
type Solver struct {
	ctx      *btctx.Context
	vdb      *vardb.Database
	cdb      *clausedb.Database
	tr       *trail.Trail
	boolType vardb.TypeIndex
	opts     Options

	plugins  []Plugin
	deciders []Decider

	bumpers           []bumper
	decayers          []decayer
	unassignNotifiees []unassignNotifiee
	queueResetters    []queueResetter
	restarter         restartScheduler

	input      *rules.InputClauseRule
	resolution *rules.BooleanResolutionRule

	assertions []clausedb.StrongRef
	learnts    []clausedb.StrongRef

	clauseActivity map[clausedb.CRef]float64
	clauseInc      float64
	nextReduceAt   int

	conflicts             int
	conflictsSinceRestart int
	restartBound          int
}

// New constructs a core loop over the given shared state. boolType must be
// the dense Boolean type class shared by tr, the registered plugins, and
// every literal passed to AddAssertion.
func New(ctx *btctx.Context, vdb *vardb.Database, cdb *clausedb.Database, tr *trail.Trail, boolType vardb.TypeIndex, opts Options) *Solver {
	return &Solver{
		ctx:            ctx,
		vdb:            vdb,
		cdb:            cdb,
		tr:             tr,
		boolType:       boolType,
		opts:           opts,
		input:          rules.NewInputClauseRule(cdb, tr),
		resolution:     rules.NewBooleanResolutionRule(cdb),
		clauseActivity: map[clausedb.CRef]float64{},
		clauseInc:      1,
		nextReduceAt:   opts.ReduceDBInterval,
	}
}

// AddPlugin registers p for dispatch, additionally wiring it into whichever
// optional feature-dispatch tables its concrete type implements.
func (s *Solver) AddPlugin(p Plugin) {
	s.plugins = append(s.plugins, p)
	if d, ok := p.(Decider); ok {
		s.deciders = append(s.deciders, d)
	}
	if b, ok := p.(bumper); ok {
		s.bumpers = append(s.bumpers, b)
	}
	if d, ok := p.(decayer); ok {
		s.decayers = append(s.decayers, d)
	}
	if u, ok := p.(unassignNotifiee); ok {
		s.unassignNotifiees = append(s.unassignNotifiees, u)
	}
	if r, ok := p.(queueResetter); ok {
		s.queueResetters = append(s.queueResetters, r)
	}
	if r, ok := p.(restartScheduler); ok && s.restarter == nil {
		s.restarter = r
	}
}

// AddAssertion adds one already-Boolean clause (spec.md §6's
// Solver.addAssertion, with CNF conversion already performed by a
// collaborator such as internal/cnf). If processImmediately, one
// Propagate round runs immediately. Conflicts are not reported here but
// picked up by the next Check call: a clause whose literals are all false
// at level 0, and any plugin-reported conflict of the immediate round, is
// recorded on the trail as a conflicting propagation, an ordinary trail
// fact until Check starts arbitrating it.
func (s *Solver) AddAssertion(literals []lit.Literal, processImmediately bool) clausedb.CRef {
	ref := s.input.Apply(literals)
	if !ref.IsNull() {
		s.assertions = append(s.assertions, clausedb.NewStrongRef(s.cdb, ref))
		if len(s.cdb.Get(ref).Literals) == 0 && len(literals) > 0 && s.tr.DecisionLevel() == 0 {
			s.tr.ClausalPropagate(literals[0], ref)
		}
	}
	if processImmediately {
		tok := s.runPropagate()
		for _, c := range tok.Conflicts() {
			if lits := s.cdb.Get(c).Literals; len(lits) > 0 {
				s.tr.ClausalPropagate(lits[0], c)
			}
		}
	}
	return ref
}

// Check runs the main loop to completion (spec.md §4.9's pseudocode):
// propagate cheaply to a fixpoint, resolve any conflict, otherwise ask
// every Decider for a decision; if none has one, fall back to a full
// Check-mode pass before concluding Sat.
func (s *Solver) Check() Result {
	for {
		tok := s.runPropagate()
		if tok.HasConflict() {
			if res, done := s.onConflict(tok); done {
				return res
			}
			continue
		}
		if s.tryDecide() {
			continue
		}

		tok = s.runCheck()
		if tok.HasConflict() {
			if res, done := s.onConflict(tok); done {
				return res
			}
			continue
		}
		if s.tryDecide() {
			continue
		}
		return Sat
	}
}

// onConflict resolves the first conflict carried by tok. done is true only
// when the search must stop (a root-level conflict: Unsat); otherwise the
// caller should re-enter propagation.
func (s *Solver) onConflict(tok *PropagationToken) (Result, bool) {
	ref, ok := firstConflict(tok, s.tr)
	if !ok {
		return Unknown, false
	}
	if s.tr.DecisionLevel() == 0 {
		return Unsat, true
	}
	s.resolveConflict(ref)
	return Unknown, false
}

func firstConflict(tok *PropagationToken, tr *trail.Trail) (clausedb.CRef, bool) {
	if cs := tok.Conflicts(); len(cs) > 0 {
		return cs[0], true
	}
	if ip := tr.InconsistentPropagations(); len(ip) > 0 {
		return ip[0].Reason, true
	}
	return clausedb.Null, false
}

// runPropagate dispatches Propagate to every plugin, in registration
// order, repeating rounds until the trail stops growing or a conflict is
// found (spec.md §4.9's "Normal" propagate mode, "repeating until no
// plugin uses its token").
func (s *Solver) runPropagate() *PropagationToken {
	for {
		before := s.tr.Size()
		tok := NewPropagationToken(s.tr)
		for _, p := range s.plugins {
			p.Propagate(tok)
			if tok.HasConflict() {
				return tok
			}
		}
		if s.tr.Size() == before {
			return tok
		}
	}
}

// runCheck dispatches one Check round to every plugin (spec.md §4.9's
// "Complete" propagate mode), used once no plugin has any more cheap
// propagation to offer and no Decider produced a decision.
func (s *Solver) runCheck() *PropagationToken {
	tok := NewPropagationToken(s.tr)
	for _, p := range s.plugins {
		p.Check(tok)
		if tok.HasConflict() {
			return tok
		}
	}
	return tok
}

func (s *Solver) tryDecide() bool {
	for _, d := range s.deciders {
		if d.Decide(s.tr) {
			return true
		}
	}
	return false
}

// trueLiteralOf returns the literal form of v's current Boolean value.
func (s *Solver) trueLiteralOf(v vardb.Variable) lit.Literal {
	if s.tr.BoolValue(v) == trail.True {
		return lit.Positive(v.Index)
	}
	return lit.Negative(v.Index)
}

// analyze performs Boolean first-UIP conflict analysis (spec.md §4.9,
// "Conflict analysis (Boolean first-UIP)"), driving
// internal/rules.BooleanResolutionRule rather than accumulating a raw
// literal slice, since proof rules are this codebase's only clause
// creators. It returns the learnt clause, the literal that the clause
// asserts once backtracked to backtrackLevel, and that backtrack level.
func (s *Solver) analyze(confl clausedb.CRef) (clausedb.CRef, lit.Literal, int) {
	s.touchClause(confl)
	s.resolution.Start(s.cdb.Get(confl).Literals)

	level := s.tr.DecisionLevel()
	nextIdx := s.tr.Size() - 1

	for {
		cur := s.resolution.Literals()
		curSet := make(map[vardb.VarIndex]bool, len(cur))
		atLevel := 0
		backtrackLevel := 0
		var atLevelLit lit.Literal
		for _, l := range cur {
			curSet[l.VarIndex()] = true
			lvl := s.tr.VarDecisionLevel(l.Variable(s.boolType))
			if lvl == level {
				atLevel++
				atLevelLit = l
			} else if lvl > backtrackLevel {
				backtrackLevel = lvl
			}
		}
		if atLevel <= 1 {
			// atLevelLit is already in clause form (false on the trail
			// until backtrack); that is exactly the literal the learnt
			// clause must assert once it becomes unit.
			return s.resolution.Finish(), atLevelLit, backtrackLevel
		}

		var pivotTrue lit.Literal
		for {
			el := s.tr.At(nextIdx)
			nextIdx--
			if el.Var.Type == s.boolType && curSet[el.Var.Index] {
				pivotTrue = s.trueLiteralOf(el.Var)
				break
			}
		}

		if !s.tr.HasReason(pivotTrue) {
			// A decision variable: nothing left to resolve away at this
			// level, so it is the UIP. Its clause-form literal -- the one
			// the learnt clause must assert -- is pivotTrue's negation.
			return s.resolution.Finish(), pivotTrue.Opposite(), backtrackLevel
		}

		reasonRef := s.tr.Reason(pivotTrue)
		s.touchClause(reasonRef)
		reasonLits := s.cdb.Get(reasonRef).Literals
		idx := -1
		for i, l := range reasonLits {
			if l == pivotTrue {
				idx = i
				break
			}
		}
		if idx < 0 {
			panic("solver: reason clause does not contain its propagated literal")
		}
		s.resolution.Resolve(reasonLits, idx)
	}
}

// resolveConflict runs analyze, records the learnt clause, backtracks, and
// asserts the newly unit clause's literal (spec.md §4.9 steps 6-7 plus the
// "Learnt clause scoring" section, grounded on yass.Solver.record/
// DecayClaActivity/DecayVarActivity).
func (s *Solver) resolveConflict(confl clausedb.CRef) {
	learnt, asserted, backtrackLevel := s.analyze(confl)

	sr := clausedb.NewStrongRef(s.cdb, learnt)
	s.learnts = append(s.learnts, sr)
	s.bumpClause(learnt)
	for _, l := range s.cdb.Get(learnt).Literals {
		for _, b := range s.bumpers {
			b.BumpVariable(l)
		}
	}
	for _, d := range s.decayers {
		d.DecayVariables()
	}
	s.decayClauseActivity()

	s.backtrackTo(backtrackLevel)
	s.tr.ClausalPropagate(asserted, learnt)

	s.conflicts++
	s.maybeRestart()
	s.maybeReduceDB()
	s.maybeSimplify()
}

// touchClause bumps ref's activity if it is a tracked (learnt) clause.
// Input clauses are permanent and never scored. Grounded on
// yass.Clause.ExplainFailure/ExplainAssign bumping every clause walked
// during analysis.
func (s *Solver) touchClause(ref clausedb.CRef) {
	if _, ok := s.clauseActivity[ref]; ok {
		s.bumpClause(ref)
	}
}

func (s *Solver) bumpClause(ref clausedb.CRef) {
	s.clauseActivity[ref] += s.clauseInc
	if s.clauseActivity[ref] > 1e20 {
		for r := range s.clauseActivity {
			s.clauseActivity[r] *= 1e-20
		}
		s.clauseInc *= 1e-20
	}
}

func (s *Solver) decayClauseActivity() {
	s.clauseInc *= s.opts.ClauseDecay
}

// backtrackTo pops the trail to level, then notifies every plugin that
// implements unassignNotifiee of each variable that was freed (with the
// phase it held immediately before PopTo cleared it, since PopTo's return
// value carries no value information) and rewinds every queueResetter's
// propagation cursor to the first freed trail position.
func (s *Solver) backtrackTo(level int) {
	type freed struct {
		v       vardb.Variable
		wasTrue bool
	}
	start := s.tr.SizeAtLevel(level)
	snapshots := make([]freed, 0, s.tr.Size()-start)
	for i := s.tr.Size() - 1; i >= start; i-- {
		el := s.tr.At(i)
		wasTrue := el.Var.Type == s.boolType && s.tr.BoolValue(el.Var) == trail.True
		snapshots = append(snapshots, freed{el.Var, wasTrue})
	}

	s.tr.PopTo(level)

	for _, f := range snapshots {
		for _, u := range s.unassignNotifiees {
			u.Unassigned(f.v, f.wasTrue)
		}
	}
	for _, r := range s.queueResetters {
		r.ResetQueueHead(start)
	}
}

// maybeRestart pops to level 0 once the restart-capable plugin's schedule
// says so (spec.md §4.9's restart request, grounded on bcp.Engine's Luby
// schedule). A core with no restart-scheduling plugin never restarts.
func (s *Solver) maybeRestart() {
	if s.restarter == nil {
		return
	}
	if s.restartBound == 0 {
		s.restartBound = s.restarter.NextRestartBound()
	}
	s.conflictsSinceRestart++
	if s.conflictsSinceRestart < s.restartBound {
		return
	}
	s.conflictsSinceRestart = 0
	s.restartBound = s.restarter.NextRestartBound()
	s.backtrackTo(0)
}

// maybeReduceDB periodically halves the learnt clause set, keeping the
// higher-activity half plus any clause currently serving as a trail
// literal's reason (yass.Solver.ReduceDB).
func (s *Solver) maybeReduceDB() {
	if len(s.learnts) < s.nextReduceAt {
		return
	}
	s.nextReduceAt = len(s.learnts) + s.opts.ReduceDBInterval

	sort.Slice(s.learnts, func(i, j int) bool {
		return s.clauseActivity[s.learnts[i].Ref] < s.clauseActivity[s.learnts[j].Ref]
	})

	half := len(s.learnts) / 2
	kept := s.learnts[:0]
	for i, sr := range s.learnts {
		if i < half && !s.locked(sr.Ref) {
			delete(s.clauseActivity, sr.Ref)
			sr.Release()
			continue
		}
		kept = append(kept, sr)
	}
	s.learnts = kept
}

// locked reports whether ref is currently the reason for one of its own
// literals on the trail, making it unsafe to drop.
func (s *Solver) locked(ref clausedb.CRef) bool {
	for _, l := range s.cdb.Get(ref).Literals {
		if s.tr.HasReason(l) && s.tr.Reason(l) == ref {
			return true
		}
	}
	return false
}

// maybeSimplify drops root-satisfied clauses from both the assertion and
// learnt sets whenever the search returns to level 0 (yass.Solver.Simplify,
// run automatically rather than requiring an explicit call).
func (s *Solver) maybeSimplify() {
	if s.tr.DecisionLevel() != 0 {
		return
	}
	s.assertions = s.dropRootSatisfied(s.assertions)
	s.learnts = s.dropRootSatisfied(s.learnts)
}

func (s *Solver) dropRootSatisfied(refs []clausedb.StrongRef) []clausedb.StrongRef {
	kept := refs[:0]
	for _, sr := range refs {
		if s.isRootSatisfied(sr.Ref) {
			delete(s.clauseActivity, sr.Ref)
			sr.Release()
			continue
		}
		kept = append(kept, sr)
	}
	return kept
}

func (s *Solver) isRootSatisfied(ref clausedb.CRef) bool {
	for _, l := range s.cdb.Get(ref).Literals {
		if s.tr.IsTrue(l) {
			return true
		}
	}
	return false
}

// NumConflicts reports the total number of conflicts resolved so far.
func (s *Solver) NumConflicts() int { return s.conflicts }

// NumLearnts reports the number of learnt clauses currently retained.
func (s *Solver) NumLearnts() int { return len(s.learnts) }
