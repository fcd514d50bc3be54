package arith

import (
	"math/big"
	"testing"

	"github.com/dkarv/mcsat/internal/btctx"
	"github.com/dkarv/mcsat/internal/clausedb"
	"github.com/dkarv/mcsat/internal/solver"
	"github.com/dkarv/mcsat/internal/trail"
	"github.com/dkarv/mcsat/internal/vardb"
)

func newPluginFixture(t *testing.T) (*vardb.Database, *trail.Trail, *Plugin, vardb.TypeIndex, vardb.TypeIndex) {
	t.Helper()
	ctx := btctx.New()
	vdb := vardb.New()
	boolType := vdb.TypeIndexOf("Bool")
	realType := vdb.TypeIndexOf("Real")
	tr := trail.New(ctx, vdb, boolType)
	cdb := clausedb.NewDatabase()
	p := NewPlugin(ctx, vdb, cdb, tr, boolType, realType)
	return vdb, tr, p, boolType, realType
}

func TestPlugin_Assert_DedupsIdenticalConstraints(t *testing.T) {
	vdb, _, p, _, realType := newPluginFixture(t)
	x := vdb.Variable(realType, "x").Index
	c := New(map[vardb.VarIndex]*big.Rat{x: r(1, 1)}, r(-5, 1), GE)

	l1 := p.Assert(c)
	l2 := p.Assert(c.Clone())
	if l1 != l2 {
		t.Fatal("asserting the same constraint twice should return the same literal")
	}
}

func TestPlugin_UnitBound_PropagatesAndDetectsConflict(t *testing.T) {
	vdb, tr, p, _, realType := newPluginFixture(t)
	xVar := vdb.Variable(realType, "x")
	x := xVar.Index

	geFive := New(map[vardb.VarIndex]*big.Rat{x: r(1, 1)}, r(-5, 1), GE)  // x >= 5
	leThree := New(map[vardb.VarIndex]*big.Rat{x: r(-1, 1)}, r(3, 1), GE) // x <= 3

	lGE := p.Assert(geFive)
	lLE := p.Assert(leThree)

	tr.DecideLiteral(lGE)
	tok := solver.NewPropagationToken(tr)
	p.Propagate(tok)
	if tok.HasConflict() {
		t.Fatal("a single bound should never conflict")
	}
	if p.bounds.Lower(x) == nil || p.bounds.Lower(x).Value.Cmp(r(5, 1)) != 0 {
		t.Fatal("x should have a lower bound of 5")
	}

	tr.DecideLiteral(lLE)
	tok2 := solver.NewPropagationToken(tr)
	p.Propagate(tok2)
	if !tok2.HasConflict() {
		t.Fatal("x>=5 and x<=3 together should conflict")
	}
}

func TestPlugin_TwoVariableConstraint_PropagatesOnceOtherIsDecided(t *testing.T) {
	vdb, tr, p, _, realType := newPluginFixture(t)
	x := vdb.Variable(realType, "x").Index
	y := vdb.Variable(realType, "y").Index

	// x + y >= 10
	sum := New(map[vardb.VarIndex]*big.Rat{x: r(1, 1), y: r(1, 1)}, r(-10, 1), GE)
	l := p.Assert(sum)

	tr.DecideLiteral(l)
	tok := solver.NewPropagationToken(tr)
	p.Propagate(tok)
	if tok.HasConflict() {
		t.Fatal("no conflict expected from asserting the constraint alone")
	}

	tr.DecideValue(vardb.Variable{Type: realType, Index: y}, r(4, 1))
	tok2 := solver.NewPropagationToken(tr)
	p.Propagate(tok2)
	if tok2.HasConflict() {
		t.Fatal("no conflict expected, just a unit bound on x")
	}

	lower := p.bounds.Lower(x)
	if lower == nil || lower.Value.Cmp(r(6, 1)) != 0 {
		t.Fatalf("x should have a derived lower bound of 6, got %+v", lower)
	}
}

func TestPlugin_ThreeVariableConstraint_PropagatesOnceTwoAreDecided(t *testing.T) {
	vdb, tr, p, _, realType := newPluginFixture(t)
	x := vdb.Variable(realType, "x").Index
	y := vdb.Variable(realType, "y").Index
	z := vdb.Variable(realType, "z").Index

	// x + y + z >= 2
	c := New(map[vardb.VarIndex]*big.Rat{x: r(1, 1), y: r(1, 1), z: r(1, 1)}, r(-2, 1), GE)
	l := p.Assert(c)

	tr.DecideLiteral(l)
	tok := solver.NewPropagationToken(tr)
	p.Propagate(tok)
	if tok.HasConflict() {
		t.Fatal("no conflict expected yet")
	}

	tr.DecideValue(vardb.Variable{Type: realType, Index: x}, r(0, 1))
	tok2 := solver.NewPropagationToken(tr)
	p.Propagate(tok2)
	if tok2.HasConflict() {
		t.Fatal("no conflict expected after deciding x alone")
	}
	if p.bounds.Lower(z) != nil {
		t.Fatal("z should not have a bound yet with two variables still unassigned")
	}

	tr.DecideValue(vardb.Variable{Type: realType, Index: y}, r(0, 1))
	tok3 := solver.NewPropagationToken(tr)
	p.Propagate(tok3)
	if tok3.HasConflict() {
		t.Fatal("no conflict expected, just a unit bound on z")
	}

	lower := p.bounds.Lower(z)
	if lower == nil || lower.Value.Cmp(r(2, 1)) != 0 {
		t.Fatalf("z should have a derived lower bound of 2, got %+v", lower)
	}
}

func TestPlugin_Decide_PicksValueWithinBounds(t *testing.T) {
	vdb, tr, p, _, realType := newPluginFixture(t)
	x := vdb.Variable(realType, "x").Index

	geFive := New(map[vardb.VarIndex]*big.Rat{x: r(1, 1)}, r(-5, 1), GE)
	tr.DecideLiteral(p.Assert(geFive))
	tok := solver.NewPropagationToken(tr)
	p.Propagate(tok)

	if !p.Decide(tr) {
		t.Fatal("Decide should succeed with an unassigned arithmetic variable present")
	}
	val, ok := tr.RatValue(vardb.Variable{Type: realType, Index: x})
	if !ok {
		t.Fatal("x should be assigned after Decide")
	}
	if val.Cmp(r(5, 1)) < 0 {
		t.Fatalf("decided value %v violates x>=5", val)
	}
}

func TestPlugin_Decide_IntegerVariablePicksIntegerValue(t *testing.T) {
	vdb, tr, p, _, realType := newPluginFixture(t)
	x := vdb.Variable(realType, "x").Index
	p.MarkInteger(x)

	// 0 <= x, x <= 1 (non-strict on both sides: the midpoint 0.5 must
	// round rather than be picked as-is).
	geZero := New(map[vardb.VarIndex]*big.Rat{x: r(1, 1)}, r(0, 1), GE)
	leOne := New(map[vardb.VarIndex]*big.Rat{x: r(-1, 1)}, r(1, 1), GE)
	tr.DecideLiteral(p.Assert(geZero))
	tok := solver.NewPropagationToken(tr)
	p.Propagate(tok)
	tr.DecideLiteral(p.Assert(leOne))
	tok2 := solver.NewPropagationToken(tr)
	p.Propagate(tok2)
	if tok2.HasConflict() {
		t.Fatal("0<=x<=1 should not conflict")
	}

	if !p.Decide(tr) {
		t.Fatal("Decide should succeed with an unassigned integer variable present")
	}
	val, ok := tr.RatValue(vardb.Variable{Type: realType, Index: x})
	if !ok {
		t.Fatal("x should be assigned after Decide")
	}
	if !val.IsInt() {
		t.Fatalf("integer-typed variable got fractional value %v", val)
	}
	if val.Cmp(r(0, 1)) < 0 || val.Cmp(r(1, 1)) > 0 {
		t.Fatalf("decided value %v out of bounds [0,1]", val)
	}
}
