// Package solver implements the plugin-dispatch solver core loop
// (spec.md §4.9): plugin registration, the main search loop, and
// first-UIP Boolean conflict analysis. Grounded on
// original_source/src/mcsat/solver.{h,cpp} for the dispatch shape, and on
// yass.Solver.Search/analyze/cancelUntil (internal/sat/solver.go) for the
// concrete CDCL loop idiom.
package solver

import (
	"github.com/dkarv/mcsat/internal/clausedb"
	"github.com/dkarv/mcsat/internal/lit"
	"github.com/dkarv/mcsat/internal/trail"
)

// Plugin is a model-based theory solver hooked into the search (spec.md
// §4.7/§4.8's BCP and arithmetic plugins both implement this). Grounded on
// original_source/src/mcsat/plugin/solver_plugin.h's SolverPlugin: Check
// and Propagate are its "check" and "propagate" virtuals; NewClause is the
// Go-idiomatic replacement for getNewClauseListener() (the plugin simply
// registers itself, or a sub-object, with the clause database directly).
type Plugin interface {
	// Name identifies the plugin for diagnostics and options.
	Name() string
	// Propagate performs all propagation the plugin can currently do,
	// reporting results through tok.
	Propagate(tok *PropagationToken)
	// Check performs a full consistency check of the plugin's current
	// model, used when no plugin has any more cheap propagation to offer.
	Check(tok *PropagationToken)
}

// Decider is implemented by plugins that can supply search decisions (the
// Boolean BCP plugin decides literals, the arithmetic plugin decides
// values). The core asks each registered Decider in turn until one
// produces a decision or all abstain.
type Decider interface {
	Plugin
	// Decide attempts to extend the trail with one decision. ok is false
	// if the plugin has nothing left to decide.
	Decide(tr *trail.Trail) (ok bool)
}

// PropagationToken is how a Plugin reports propagated facts and conflicts
// back to the core during one Propagate/Check call. Grounded on
// original_source/src/mcsat/solver_trail.h's
// SolverTrail::PropagationToken.
type PropagationToken struct {
	Trail     *trail.Trail
	conflicts []clausedb.CRef
}

// NewPropagationToken wraps tr for one round of plugin dispatch.
func NewPropagationToken(tr *trail.Trail) *PropagationToken {
	return &PropagationToken{Trail: tr}
}

// Propagate asserts l on the trail with reason as its justifying clause.
// Conflicting clausal propagations are recorded on the trail itself
// (trail.InconsistentPropagations) and do not need to be reported here.
func (t *PropagationToken) Propagate(l lit.Literal, reason clausedb.CRef) {
	t.Trail.ClausalPropagate(l, reason)
}

// Conflict reports a fully-explained conflicting clause: one that, under
// the current trail, is satisfied by none of its literals. Used by
// plugins (like the arithmetic plugin's Fourier-Motzkin resolution) whose
// conflicts are not simply a clausal propagation gone bad.
func (t *PropagationToken) Conflict(ref clausedb.CRef) {
	t.conflicts = append(t.conflicts, ref)
}

// Conflicts returns the plugin-reported conflicting clauses accumulated
// this round.
func (t *PropagationToken) Conflicts() []clausedb.CRef {
	return t.conflicts
}

// HasConflict reports whether any conflict -- plugin-reported or a
// trail-level inconsistent clausal propagation -- occurred this round.
func (t *PropagationToken) HasConflict() bool {
	return len(t.conflicts) > 0 || len(t.Trail.InconsistentPropagations()) > 0
}
