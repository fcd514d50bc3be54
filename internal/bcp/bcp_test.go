package bcp

import (
	"testing"

	"github.com/dkarv/mcsat/internal/btctx"
	"github.com/dkarv/mcsat/internal/clausedb"
	"github.com/dkarv/mcsat/internal/lit"
	"github.com/dkarv/mcsat/internal/solver"
	"github.com/dkarv/mcsat/internal/trail"
	"github.com/dkarv/mcsat/internal/vardb"
)

func newFixture(t *testing.T) (*vardb.Database, *clausedb.Database, *trail.Trail, *Engine, vardb.TypeIndex) {
	t.Helper()
	ctx := btctx.New()
	vdb := vardb.New()
	boolType := vdb.TypeIndexOf("Bool")
	tr := trail.New(ctx, vdb, boolType)
	cdb := clausedb.NewDatabase()
	e := New(vdb, cdb, tr, boolType, DefaultOptions)
	return vdb, cdb, tr, e, boolType
}

func TestUnitClause_PropagatesImmediately(t *testing.T) {
	vdb, cdb, tr, _, boolType := newFixture(t)
	p := vdb.Variable(boolType, "p")

	cdb.NewClause([]lit.Literal{lit.Positive(p.Index)}, 0)

	if !tr.IsTrue(lit.Positive(p.Index)) {
		t.Fatal("unit clause should propagate p true immediately on creation")
	}
}

func TestTwoWatchedLiterals_PropagatesWhenOneFalsified(t *testing.T) {
	vdb, cdb, tr, e, boolType := newFixture(t)
	p := vdb.Variable(boolType, "p")
	q := vdb.Variable(boolType, "q")

	// Retained, as the core retains every input clause: BCP drops the
	// watches of clauses that are not in use.
	cdb.Retain(cdb.NewClause([]lit.Literal{lit.Positive(p.Index), lit.Positive(q.Index)}, 0))

	tr.DecideLiteral(lit.Negative(p.Index)) // p = false

	tok := solver.NewPropagationToken(tr)
	e.Propagate(tok)

	if !tr.IsTrue(lit.Positive(q.Index)) {
		t.Fatal("q should have been propagated true once p was falsified")
	}
	if tok.HasConflict() {
		t.Fatal("no conflict expected")
	}
}

func TestTwoWatchedLiterals_DetectsConflict(t *testing.T) {
	vdb, cdb, tr, e, boolType := newFixture(t)
	p := vdb.Variable(boolType, "p")
	q := vdb.Variable(boolType, "q")
	r := vdb.Variable(boolType, "r")

	cdb.Retain(cdb.NewClause([]lit.Literal{lit.Positive(p.Index), lit.Positive(q.Index), lit.Positive(r.Index)}, 0))

	tr.DecideLiteral(lit.Negative(p.Index)) // p = false, rehomes onto r
	tok := solver.NewPropagationToken(tr)
	e.Propagate(tok)
	if tok.HasConflict() {
		t.Fatal("no conflict expected yet, q/r still unassigned")
	}

	tr.DecideLiteral(lit.Negative(q.Index)) // q = false, no replacement left but r
	tok2 := solver.NewPropagationToken(tr)
	e.Propagate(tok2)
	if tok2.HasConflict() {
		t.Fatal("no conflict expected yet, r still unassigned")
	}

	tr.DecideLiteral(lit.Negative(r.Index)) // r = false: all three literals false now
	tok3 := solver.NewPropagationToken(tr)
	e.Propagate(tok3)
	if !tok3.HasConflict() {
		t.Fatal("expected a conflict once all clause literals are false")
	}
}

func TestDecide_PicksUnassignedVariable(t *testing.T) {
	vdb, _, tr, e, boolType := newFixture(t)
	p := vdb.Variable(boolType, "p")

	ok := e.Decide(tr)
	if !ok {
		t.Fatal("Decide should succeed with an unassigned variable present")
	}
	if !tr.IsAssigned(p) {
		t.Fatal("p should be assigned after Decide")
	}
}

func TestLuby_MatchesReferenceSequence(t *testing.T) {
	want := []int{1, 1, 2, 1, 1, 2, 4, 1}
	for i, w := range want {
		if got := luby(i + 1); got != w {
			t.Fatalf("luby(%d) = %d, want %d", i+1, got, w)
		}
	}
}
