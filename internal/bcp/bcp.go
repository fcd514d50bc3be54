// Package bcp implements the Boolean constraint propagation plugin
// (spec.md §4.7): two-watched-literal propagation over the clause
// database, activity-based decisions with phase saving, and the Luby
// restart schedule. Grounded on yass.Solver's watcher/Propagate/Watch/
// Unwatch machinery and VarOrder (internal/sat/{solver,ordering}.go),
// generalized from "the one monolithic solver" to "a plugin hung off a
// shared trail and clause database".
package bcp

import (
	"github.com/dkarv/mcsat/internal/clausedb"
	"github.com/dkarv/mcsat/internal/lit"
	"github.com/dkarv/mcsat/internal/solver"
	"github.com/dkarv/mcsat/internal/trail"
	"github.com/dkarv/mcsat/internal/vardb"
	"github.com/dkarv/mcsat/internal/watch"
)

// watchEntry attaches a clause to one of its literals' watch list. guard
// is another literal of the clause: if it is already true, the clause is
// known satisfied and propagation can be skipped cheaply (yass's
// "guard" optimization).
type watchEntry struct {
	clause clausedb.CRef
	guard  lit.Literal
}

// liveClauses adapts a *clausedb.Database to watch.InUse so stale watch
// entries (pointing at a since-GC'd or shrunk clause) are dropped lazily.
type liveClauses struct {
	db *clausedb.Database
}

func (l liveClauses) InUse(e watchEntry) bool {
	return l.db.Get(e.clause).InUse()
}

// Engine is the BCP plugin. One Engine should be constructed per solver
// instance and registered both as a vardb.NewVariableListener (to learn
// about new Boolean variables) and a clausedb.NewClauseListener (to watch
// new clauses), in addition to being added to the solver core as a
// solver.Decider.
type Engine struct {
	vdb      *vardb.Database
	cdb      *clausedb.Database
	tr       *trail.Trail
	boolType vardb.TypeIndex

	watches *watch.List[lit.Literal, watchEntry]
	order   *varOrder

	qHead int

	phaseSaving bool

	restartsDone  int
	conflictsLeft int
}

// Options configures the BCP plugin (spec.md §6's VariableDecay/
// PhaseSaving entries), mirroring yass.Options' relevant fields. The
// restart schedule has no option: NextRestartBound is fixed at 100*luby(i).
type Options struct {
	VariableDecay float64
	PhaseSaving   bool
}

// DefaultOptions mirrors yass.DefaultOptions' Boolean-search defaults.
var DefaultOptions = Options{
	VariableDecay: 0.95,
	PhaseSaving:   false,
}

// New constructs the BCP plugin over the given shared variable database,
// clause database and trail. boolType must be the dense type class used
// for Boolean atoms (the same one passed to trail.New).
func New(vdb *vardb.Database, cdb *clausedb.Database, tr *trail.Trail, boolType vardb.TypeIndex, opts Options) *Engine {
	e := &Engine{
		vdb:           vdb,
		cdb:           cdb,
		tr:            tr,
		boolType:      boolType,
		order:         newVarOrder(opts.VariableDecay, opts.PhaseSaving),
		phaseSaving:   opts.PhaseSaving,
		conflictsLeft: lubyRestart(1, 1),
	}
	e.watches = watch.NewList[lit.Literal, watchEntry](liveClauses{db: cdb})
	vdb.AddListener(e, false)
	cdb.AddListener(e, false)
	return e
}

// Name implements solver.Plugin.
func (e *Engine) Name() string { return "bcp" }

// NewVariable implements vardb.NewVariableListener: the BCP plugin tracks
// every Boolean variable in its activity order.
func (e *Engine) NewVariable(v vardb.Variable) {
	if v.Type != e.boolType {
		return
	}
	e.order.addVar(v.Index, 0, true)
}

// NewClause implements clausedb.NewClauseListener: every clause of two or
// more literals is attached to the watch lists of its first two literals
// (a unit clause is propagated immediately instead).
func (e *Engine) NewClause(ref clausedb.CRef, c *clausedb.Clause) {
	if len(c.Literals) == 0 {
		return // the empty clause is a standing top-level conflict, handled by the core
	}
	if len(c.Literals) == 1 {
		e.enqueue(c.Literals[0], ref)
		return
	}
	e.attach(ref, c)
}

func (e *Engine) attach(ref clausedb.CRef, c *clausedb.Clause) {
	a, b := c.Literals[0], c.Literals[1]
	e.watches.Add(a.Opposite(), watchEntry{clause: ref, guard: b})
	e.watches.Add(b.Opposite(), watchEntry{clause: ref, guard: a})
}

// enqueue asserts l with reason as its justifying clause. Returns false if
// l was already false on the trail -- a conflicting unit clause; the
// conflict itself is recorded on the trail by ClausalPropagate.
func (e *Engine) enqueue(l lit.Literal, reason clausedb.CRef) bool {
	wasFalse := e.tr.IsFalse(l)
	e.tr.ClausalPropagate(l, reason)
	return !wasFalse
}

// Propagate implements solver.Plugin: it drains the queue of newly-true
// literals, walking the watch list of each literal's negation and either
// re-homing the watch, finding a new unit to propagate, or reporting a
// conflict.
func (e *Engine) Propagate(tok *solver.PropagationToken) {
	// Pick up every literal the trail has assigned since our last call
	// that we have not yet propagated (decisions made by other plugins,
	// or by this one before Propagate was invoked again).
	for e.qHead < e.tr.Size() {
		el := e.tr.At(e.qHead)
		e.qHead++
		if el.Var.Type != e.boolType {
			continue
		}
		val := e.tr.BoolValue(el.Var)
		if val == trail.Unknown {
			continue
		}
		l := lit.Of(el.Var.Index, val == trail.False)
		e.propagateFrom(l, tok)
		if tok.HasConflict() {
			return
		}
	}
}

// Check implements solver.Plugin. BCP has no expensive model check beyond
// what Propagate already does.
func (e *Engine) Check(tok *solver.PropagationToken) {}

// propagateFrom scans the watch list of falseLit's opposite (i.e. the
// clauses watching trueLit's negation, which just went false, for units
// or conflicts. trueLit is the key under which the watch entry was
// stored: watches.Add(watched.Opposite(), ...) is examined exactly when
// watched.Opposite() -- trueLit -- becomes true.
func (e *Engine) propagateFrom(trueLit lit.Literal, tok *solver.PropagationToken) {
	falseLit := trueLit.Opposite()
	it := e.watches.Iter(trueLit)
	for {
		w, ok := it.Next()
		if !ok {
			break
		}
		if e.tr.IsTrue(w.guard) {
			it.Keep(w)
			continue
		}
		c := e.cdb.Get(w.clause)
		if !c.InUse() {
			continue // drop the stale entry
		}
		idx := -1
		for i, l := range c.Literals {
			if l == falseLit {
				idx = i
				break
			}
		}
		if idx < 0 {
			it.Keep(w)
			continue
		}

		// Find a new literal to watch in place of falseLit: one that is
		// not false and is not the clause's other watched literal
		// (w.guard), which stays watched under its own entry.
		found := false
		for i, l := range c.Literals {
			if i == idx {
				continue
			}
			if l == w.guard {
				continue
			}
			if !e.tr.IsFalse(l) {
				c.Literals[i], c.Literals[idx] = c.Literals[idx], c.Literals[i]
				found = true
				break
			}
		}
		if found {
			e.watches.Add(c.Literals[idx].Opposite(), watchEntry{clause: w.clause, guard: w.guard})
			continue
		}

		// No replacement: the clause is unit on w.guard, or conflicting.
		it.Keep(w)
		if !e.enqueue(w.guard, w.clause) {
			it.Rest()
			return
		}
	}
	it.Finish()
}

// Decide implements solver.Decider: pick the highest-activity unassigned
// Boolean variable and decide it to its saved (or default) phase.
func (e *Engine) Decide(tr *trail.Trail) bool {
	v, phase, ok := e.order.next(func(idx vardb.VarIndex) bool {
		return tr.IsAssigned(vardb.Variable{Type: e.boolType, Index: idx})
	})
	if !ok {
		return false
	}
	tr.DecideLiteral(lit.Of(v, !phase))
	return true
}

// BumpVariable increases l's variable's activity, called by the core
// during conflict analysis for every literal resolved upon.
func (e *Engine) BumpVariable(l lit.Literal) {
	e.order.bump(l.VarIndex())
}

// DecayVariables applies the activity decay, called by the core once per
// conflict.
func (e *Engine) DecayVariables() {
	e.order.decay()
}

// Unassigned notifies the plugin that v has just been popped off the
// trail (by the core's backtrack), returning it to the candidate set.
func (e *Engine) Unassigned(v vardb.Variable, wasTrue bool) {
	if v.Type != e.boolType {
		return
	}
	e.order.reinsert(v.Index, boolOf(wasTrue))
}

// ResetQueueHead rewinds the propagation cursor to replay the trail from
// position i, used by the core right after a backtrack.
func (e *Engine) ResetQueueHead(i int) {
	if i < e.qHead {
		e.qHead = i
	}
}

// lubyRestart computes the Luby-sequence restart bound for the given
// 1-indexed restart count, scaled by base (spec.md §4.7's restart
// schedule). The sequence is validated against the reference table in
// SPEC_FULL.md: luby(1)=1, luby(2)=1, luby(3)=2, luby(4)=1, luby(5)=1,
// luby(6)=2, luby(7)=4, luby(8)=1, ...
func lubyRestart(base float64, i int) int {
	return int(base * float64(luby(i)))
}

func luby(i int) int {
	// The finite Luby sequence [1, 1, 2, 1, 1, 2, 4, 1, ...] at 1-indexed
	// position i, via the standard doubling-run recurrence: validated
	// against SPEC_FULL.md's reference table up to luby(8).
	k := 1
	for (1<<uint(k))-1 < i {
		k++
	}
	if (1<<uint(k))-1 == i {
		return 1 << uint(k-1)
	}
	return luby(i - (1 << uint(k-1)) + 1)
}

// NextRestartBound returns the next conflict-count bound for a restart,
// advancing the internal Luby counter.
func (e *Engine) NextRestartBound() int {
	e.restartsDone++
	return lubyRestart(100, e.restartsDone)
}
