package trail

import (
	"math/big"
	"testing"

	"github.com/dkarv/mcsat/internal/btctx"
	"github.com/dkarv/mcsat/internal/clausedb"
	"github.com/dkarv/mcsat/internal/lit"
	"github.com/dkarv/mcsat/internal/vardb"
)

func newFixture(t *testing.T) (*btctx.Context, *vardb.Database, *Trail, vardb.TypeIndex, vardb.TypeIndex) {
	t.Helper()
	ctx := btctx.New()
	db := vardb.New()
	boolType := db.TypeIndexOf("Bool")
	realType := db.TypeIndexOf("Real")
	tr := New(ctx, db, boolType)
	return ctx, db, tr, boolType, realType
}

func TestDecideLiteral_OpensLevelAndAssigns(t *testing.T) {
	_, db, tr, boolType, _ := newFixture(t)
	p := db.Variable(boolType, "p")

	tr.DecideLiteral(lit.Positive(p.Index))

	if tr.DecisionLevel() != 1 {
		t.Fatalf("DecisionLevel() = %d, want 1", tr.DecisionLevel())
	}
	if !tr.IsTrue(lit.Positive(p.Index)) {
		t.Fatal("p should be true after deciding its positive literal")
	}
	if tr.VarDecisionLevel(p) != 1 {
		t.Fatalf("VarDecisionLevel(p) = %d, want 1", tr.VarDecisionLevel(p))
	}
}

func TestDecideLiteral_PanicsIfAlreadyAssigned(t *testing.T) {
	_, db, tr, boolType, _ := newFixture(t)
	p := db.Variable(boolType, "p")
	tr.DecideLiteral(lit.Positive(p.Index))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic deciding an already-assigned variable")
		}
	}()
	tr.DecideLiteral(lit.Negative(p.Index))
}

func TestClausalPropagate_ConflictRecorded(t *testing.T) {
	_, db, tr, boolType, _ := newFixture(t)
	p := db.Variable(boolType, "p")
	tr.DecideLiteral(lit.Negative(p.Index)) // p = false

	ref := clausedb.CRef{}
	tr.ClausalPropagate(lit.Positive(p.Index), ref)

	got := tr.InconsistentPropagations()
	if len(got) != 1 || got[0].Lit != lit.Positive(p.Index) {
		t.Fatalf("InconsistentPropagations() = %v, want one entry for p", got)
	}
}

func TestClausalPropagate_ReasonRoundTrips(t *testing.T) {
	db := clausedb.NewDatabase()
	ruleID := db.RegisterRule("input")
	cref := db.NewClause([]lit.Literal{lit.Positive(0)}, ruleID)

	_, vdb, tr, boolType, _ := newFixture(t)
	p := vdb.Variable(boolType, "p")
	l := lit.Positive(p.Index)

	tr.ClausalPropagate(l, cref)

	if !tr.HasReason(l) {
		t.Fatal("HasReason(l) = false, want true")
	}
	if tr.Reason(l) != cref {
		t.Fatalf("Reason(l) = %v, want %v", tr.Reason(l), cref)
	}
}

func TestPopTo_UnassignsAndReturnsLIFO(t *testing.T) {
	_, db, tr, boolType, _ := newFixture(t)
	p := db.Variable(boolType, "p")
	q := db.Variable(boolType, "q")

	tr.DecideLiteral(lit.Positive(p.Index))
	tr.ClausalPropagate(lit.Positive(q.Index), clausedb.CRef{})

	unset := tr.PopTo(0)

	if len(unset) != 2 {
		t.Fatalf("PopTo returned %d variables, want 2", len(unset))
	}
	if unset[0] != q || unset[1] != p {
		t.Fatalf("PopTo order = %v, want [q, p]", unset)
	}
	if tr.BoolValue(p) != Unknown || tr.BoolValue(q) != Unknown {
		t.Fatal("variables should be Unknown after PopTo(0)")
	}
	if tr.DecisionLevel() != 0 {
		t.Fatalf("DecisionLevel() = %d, want 0", tr.DecisionLevel())
	}
}

func TestDecideValue_ArithmeticVariable(t *testing.T) {
	_, db, tr, _, realType := newFixture(t)
	x := db.Variable(realType, "x")

	tr.DecideValue(x, big.NewRat(5, 1))

	got, ok := tr.RatValue(x)
	if !ok || got.Cmp(big.NewRat(5, 1)) != 0 {
		t.Fatalf("RatValue(x) = %v,%v, want 5/1,true", got, ok)
	}
	if tr.DecisionLevel() != 1 {
		t.Fatalf("DecisionLevel() = %d, want 1", tr.DecisionLevel())
	}
}

func TestSemanticPropagateValue_IdempotentAndConflicting(t *testing.T) {
	_, db, tr, _, realType := newFixture(t)
	x := db.Variable(realType, "x")

	if !tr.SemanticPropagateValue(x, big.NewRat(2, 1)) {
		t.Fatal("first SemanticPropagateValue should succeed")
	}
	if !tr.SemanticPropagateValue(x, big.NewRat(2, 1)) {
		t.Fatal("re-asserting the same value should be idempotent")
	}
	if tr.SemanticPropagateValue(x, big.NewRat(3, 1)) {
		t.Fatal("asserting a conflicting value should fail")
	}
}

func TestSizeAtLevel(t *testing.T) {
	_, db, tr, boolType, _ := newFixture(t)
	p := db.Variable(boolType, "p")
	q := db.Variable(boolType, "q")
	r := db.Variable(boolType, "r")

	tr.ClausalPropagate(lit.Positive(p.Index), clausedb.CRef{}) // level 0
	tr.DecideLiteral(lit.Positive(q.Index))                     // level 1
	tr.ClausalPropagate(lit.Positive(r.Index), clausedb.CRef{}) // level 1

	if got := tr.SizeAtLevel(0); got != 1 {
		t.Fatalf("SizeAtLevel(0) = %d, want 1", got)
	}
	if got := tr.SizeAtLevel(1); got != 3 {
		t.Fatalf("SizeAtLevel(1) = %d, want 3", got)
	}
}
