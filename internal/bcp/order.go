package bcp

import (
	"github.com/rhartert/yagh"

	"github.com/dkarv/mcsat/internal/trail"
	"github.com/dkarv/mcsat/internal/vardb"
)

// varOrder maintains the activity-ordered set of undecided Boolean
// variables, with phase saving. Grounded verbatim on
// yass.VarOrder (internal/sat/ordering.go), which is the one
// self-consistent yagh-backed implementation in the teacher repo (its
// sibling internal/sat/solver.go calls an incompatible, never-finished
// VarOrder API and is not ported -- see DESIGN.md).
type varOrder struct {
	heap *yagh.IntMap[float64]

	scores     []float64
	scoreInc   float64
	scoreDecay float64

	phases      []trail.LBool
	phaseSaving bool
}

func newVarOrder(decay float64, phaseSaving bool) *varOrder {
	return &varOrder{
		heap:        yagh.New[float64](0),
		scoreInc:    1,
		scoreDecay:  decay,
		phaseSaving: phaseSaving,
	}
}

// addVar registers a newly-created Boolean variable at the given dense
// index (must be called in increasing index order, matching vardb's
// dense allocation).
func (o *varOrder) addVar(idx vardb.VarIndex, initScore float64, initPhase bool) {
	if int(idx) != len(o.scores) {
		panic("bcp: varOrder.addVar called out of order")
	}
	o.scores = append(o.scores, initScore)
	o.phases = append(o.phases, boolOf(initPhase))
	o.heap.GrowBy(1)
	o.heap.Put(int(idx), -initScore)
}

func boolOf(b bool) trail.LBool {
	if b {
		return trail.True
	}
	return trail.False
}

// reinsert makes v a candidate again (called on backtrack unassignment),
// recording its last value for phase saving.
func (o *varOrder) reinsert(v vardb.VarIndex, val trail.LBool) {
	if o.phaseSaving {
		o.phases[v] = val
	}
	o.heap.Put(int(v), -o.scores[v])
}

// decay scales down the relative weight of past activity bumps.
func (o *varOrder) decay() {
	o.scoreInc /= o.scoreDecay
	if o.scoreInc > 1e100 {
		o.rescale()
	}
}

// bump increases v's activity, possibly rescaling all activities to avoid
// overflow.
func (o *varOrder) bump(v vardb.VarIndex) {
	newScore := o.scores[v] + o.scoreInc
	o.scores[v] = newScore
	if o.heap.Contains(int(v)) {
		o.heap.Put(int(v), -newScore)
	}
	if newScore > 1e100 {
		o.rescale()
	}
}

func (o *varOrder) rescale() {
	o.scoreInc *= 1e-100
	for v, s := range o.scores {
		newScore := s * 1e-100
		o.scores[v] = newScore
		if o.heap.Contains(v) {
			o.heap.Put(v, -newScore)
		}
	}
}

// next pops the highest-activity variable still assigned Unknown on tr,
// together with the phase it should be decided to. assigned reports
// whether v currently has a value (used to skip stale heap entries).
func (o *varOrder) next(assigned func(vardb.VarIndex) bool) (vardb.VarIndex, bool, bool) {
	for {
		item, ok := o.heap.Pop()
		if !ok {
			return 0, false, false
		}
		v := vardb.VarIndex(item.Elem)
		if assigned(v) {
			continue
		}
		switch o.phases[v] {
		case trail.False:
			return v, false, true
		default:
			return v, true, true
		}
	}
}
