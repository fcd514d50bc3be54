package arith

import (
	"math/big"

	"github.com/dkarv/mcsat/internal/btctx"
	"github.com/dkarv/mcsat/internal/lit"
	"github.com/dkarv/mcsat/internal/vardb"
)

// Bound records one side of a variable's feasible region, together with
// the literal that justifies it (original_source/src/mcsat/fm/
// fm_plugin_types.h's BoundInfo).
type Bound struct {
	Value  *big.Rat
	Strict bool
	// Reason is the set of literals whose conjunction implies this bound:
	// a single literal for a directly-asserted unit bound, or several
	// when the bound was derived by eliminating other variables via
	// FourierMotzkinRule (spec.md §4.8's cascading bound propagation).
	Reason []lit.Literal
}

// improvesLower reports whether b is a tighter lower bound than other
// (x > b.Value is better than x > other.Value).
func (b Bound) improvesLower(other *Bound) bool {
	if other == nil {
		return true
	}
	cmp := b.Value.Cmp(other.Value)
	return cmp > 0 || (cmp == 0 && b.Strict && !other.Strict)
}

// improvesUpper reports whether b is a tighter upper bound than other.
func (b Bound) improvesUpper(other *Bound) bool {
	if other == nil {
		return true
	}
	cmp := b.Value.Cmp(other.Value)
	return cmp < 0 || (cmp == 0 && b.Strict && !other.Strict)
}

// conflicts reports whether lower and upper together make the variable's
// range empty (x > a and x < b conflict if a > b, or a == b and either is
// strict).
func conflicts(lower, upper *Bound) bool {
	if lower == nil || upper == nil {
		return false
	}
	cmp := lower.Value.Cmp(upper.Value)
	return cmp > 0 || (cmp == 0 && (lower.Strict || upper.Strict))
}

// Disequality records x != value, with the asserting literal.
type Disequality struct {
	Value  *big.Rat
	Reason lit.Literal
}

// BoundsModel is the context-dependent lower/upper bound and disequality
// store for every arithmetic variable, generalizing
// original_source/src/mcsat/fm/fm_plugin_types.h's CDBoundsModel: the
// hand-rolled bound-trail/undo-index bookkeeping there is replaced by one
// btctx.CD cell per variable per bound.
type BoundsModel struct {
	ctx    *btctx.Context
	lower  map[vardb.VarIndex]*btctx.CD[*Bound]
	upper  map[vardb.VarIndex]*btctx.CD[*Bound]
	diseqs map[vardb.VarIndex]*btctx.CDList[Disequality]
}

// NewBoundsModel returns an empty bounds model anchored to ctx.
func NewBoundsModel(ctx *btctx.Context) *BoundsModel {
	return &BoundsModel{
		ctx:    ctx,
		lower:  map[vardb.VarIndex]*btctx.CD[*Bound]{},
		upper:  map[vardb.VarIndex]*btctx.CD[*Bound]{},
		diseqs: map[vardb.VarIndex]*btctx.CDList[Disequality]{},
	}
}

func (m *BoundsModel) lowerCell(v vardb.VarIndex) *btctx.CD[*Bound] {
	cd, ok := m.lower[v]
	if !ok {
		cd = btctx.NewCD[*Bound](m.ctx, nil)
		m.lower[v] = cd
	}
	return cd
}

func (m *BoundsModel) upperCell(v vardb.VarIndex) *btctx.CD[*Bound] {
	cd, ok := m.upper[v]
	if !ok {
		cd = btctx.NewCD[*Bound](m.ctx, nil)
		m.upper[v] = cd
	}
	return cd
}

// Lower returns v's current lower bound, or nil if unbounded below.
func (m *BoundsModel) Lower(v vardb.VarIndex) *Bound {
	return m.lowerCell(v).Get()
}

// Upper returns v's current upper bound, or nil if unbounded above.
func (m *BoundsModel) Upper(v vardb.VarIndex) *Bound {
	return m.upperCell(v).Get()
}

// UpdateLower installs b as v's lower bound if it improves on the current
// one, reporting whether it was installed.
func (m *BoundsModel) UpdateLower(v vardb.VarIndex, b Bound) bool {
	cell := m.lowerCell(v)
	if !b.improvesLower(cell.Get()) {
		return false
	}
	cell.Set(&b)
	return true
}

// UpdateUpper installs b as v's upper bound if it improves on the current
// one, reporting whether it was installed.
func (m *BoundsModel) UpdateUpper(v vardb.VarIndex, b Bound) bool {
	cell := m.upperCell(v)
	if !b.improvesUpper(cell.Get()) {
		return false
	}
	cell.Set(&b)
	return true
}

// InConflict reports whether v's current lower and upper bounds leave no
// feasible value.
func (m *BoundsModel) InConflict(v vardb.VarIndex) bool {
	return conflicts(m.Lower(v), m.Upper(v))
}

// withinLower reports whether val satisfies lo (or there is no lower
// bound at all).
func withinLower(val *big.Rat, lo *Bound) bool {
	if lo == nil {
		return true
	}
	cmp := val.Cmp(lo.Value)
	if lo.Strict {
		return cmp > 0
	}
	return cmp >= 0
}

// withinUpper reports whether val satisfies up (or there is no upper
// bound at all).
func withinUpper(val *big.Rat, up *Bound) bool {
	if up == nil {
		return true
	}
	cmp := val.Cmp(up.Value)
	if up.Strict {
		return cmp < 0
	}
	return cmp <= 0
}

// AddDisequality records x != d.Value, unless d.Value already falls
// outside the current bounds window, in which case the disequality is
// vacuously satisfied and discarded rather than retained forever
// (spec.md §4.8's disequality handling).
func (m *BoundsModel) AddDisequality(v vardb.VarIndex, d Disequality) {
	if !withinLower(d.Value, m.Lower(v)) || !withinUpper(d.Value, m.Upper(v)) {
		return
	}
	list, ok := m.diseqs[v]
	if !ok {
		list = btctx.NewCDList[Disequality](m.ctx)
		m.diseqs[v] = list
	}
	list.Push(d)
}

// Disequalities returns the disequalities currently recorded for v.
func (m *BoundsModel) Disequalities(v vardb.VarIndex) []Disequality {
	list, ok := m.diseqs[v]
	if !ok {
		return nil
	}
	out := make([]Disequality, list.Len())
	for i := range out {
		out[i] = list.At(i)
	}
	return out
}

// ConflictsWithDisequality reports whether candidate equals a recorded
// disequality for v, returning the offending entry.
func (m *BoundsModel) ConflictsWithDisequality(v vardb.VarIndex, candidate *big.Rat) (Disequality, bool) {
	for _, d := range m.Disequalities(v) {
		if d.Value.Cmp(candidate) == 0 {
			return d, true
		}
	}
	return Disequality{}, false
}
