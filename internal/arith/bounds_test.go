package arith

import (
	"testing"

	"github.com/dkarv/mcsat/internal/btctx"
	"github.com/dkarv/mcsat/internal/lit"
	"github.com/dkarv/mcsat/internal/vardb"
)

func TestBoundsModel_UpdateLower_OnlyImprovesOnTighterBound(t *testing.T) {
	m := NewBoundsModel(btctx.New())
	v := vardb.VarIndex(0)

	if !m.UpdateLower(v, Bound{Value: r(1, 1), Reason: []lit.Literal{lit.Positive(0)}}) {
		t.Fatal("first lower bound should always install")
	}
	if m.UpdateLower(v, Bound{Value: r(0, 1), Reason: []lit.Literal{lit.Positive(1)}}) {
		t.Fatal("a looser lower bound should not install")
	}
	if !m.UpdateLower(v, Bound{Value: r(2, 1), Reason: []lit.Literal{lit.Positive(2)}}) {
		t.Fatal("a tighter lower bound should install")
	}
	if m.Lower(v).Value.Cmp(r(2, 1)) != 0 {
		t.Fatalf("lower bound = %v, want 2", m.Lower(v).Value)
	}
}

func TestBoundsModel_InConflict(t *testing.T) {
	m := NewBoundsModel(btctx.New())
	v := vardb.VarIndex(0)

	m.UpdateLower(v, Bound{Value: r(5, 1), Reason: []lit.Literal{lit.Positive(0)}})
	if m.InConflict(v) {
		t.Fatal("a lone lower bound should never conflict")
	}
	m.UpdateUpper(v, Bound{Value: r(3, 1), Reason: []lit.Literal{lit.Positive(1)}})
	if !m.InConflict(v) {
		t.Fatal("lower=5, upper=3 should conflict")
	}
}

func TestBoundsModel_InConflict_EqualNonStrictBoundsOK(t *testing.T) {
	m := NewBoundsModel(btctx.New())
	v := vardb.VarIndex(0)
	m.UpdateLower(v, Bound{Value: r(5, 1), Strict: false, Reason: []lit.Literal{lit.Positive(0)}})
	m.UpdateUpper(v, Bound{Value: r(5, 1), Strict: false, Reason: []lit.Literal{lit.Positive(1)}})
	if m.InConflict(v) {
		t.Fatal("x>=5 and x<=5 pin x to 5, not a conflict")
	}
}

func TestBoundsModel_InConflict_EqualButOneStrict(t *testing.T) {
	m := NewBoundsModel(btctx.New())
	v := vardb.VarIndex(0)
	m.UpdateLower(v, Bound{Value: r(5, 1), Strict: true, Reason: []lit.Literal{lit.Positive(0)}})
	m.UpdateUpper(v, Bound{Value: r(5, 1), Strict: false, Reason: []lit.Literal{lit.Positive(1)}})
	if !m.InConflict(v) {
		t.Fatal("x>5 and x<=5 should conflict")
	}
}

func TestBoundsModel_Backtracking(t *testing.T) {
	ctx := btctx.New()
	m := NewBoundsModel(ctx)
	v := vardb.VarIndex(0)

	ctx.Push()
	m.UpdateLower(v, Bound{Value: r(5, 1), Reason: []lit.Literal{lit.Positive(0)}})
	if m.Lower(v) == nil {
		t.Fatal("bound should be visible before pop")
	}
	ctx.PopTo(0)
	if m.Lower(v) != nil {
		t.Fatal("bound should be undone after popping its scope")
	}
}

func TestBoundsModel_DisequalityConflict(t *testing.T) {
	m := NewBoundsModel(btctx.New())
	v := vardb.VarIndex(0)

	m.AddDisequality(v, Disequality{Value: r(3, 1), Reason: lit.Positive(0)})
	if _, found := m.ConflictsWithDisequality(v, r(3, 1)); !found {
		t.Fatal("expected a disequality match at 3")
	}
	if _, found := m.ConflictsWithDisequality(v, r(4, 1)); found {
		t.Fatal("4 should not match the recorded disequality at 3")
	}
}
