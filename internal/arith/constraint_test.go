package arith

import (
	"math/big"
	"testing"

	"github.com/dkarv/mcsat/internal/vardb"
)

func r(a, b int64) *big.Rat { return big.NewRat(a, b) }

func TestConstraint_New_DropsZeroCoefficients(t *testing.T) {
	c := New(map[vardb.VarIndex]*big.Rat{0: r(0, 1), 1: r(2, 1)}, r(0, 1), GE)
	if _, ok := c.Coeffs[0]; ok {
		t.Fatal("zero-coefficient variable should have been dropped")
	}
	if len(c.Variables()) != 1 {
		t.Fatalf("want 1 variable, got %d", len(c.Variables()))
	}
}

func TestConstraint_Eval(t *testing.T) {
	// x - 5 >= 0, i.e. x >= 5.
	c := New(map[vardb.VarIndex]*big.Rat{0: r(1, 1)}, r(-5, 1), GE)

	sat, ok := c.Eval(map[vardb.VarIndex]*big.Rat{0: r(5, 1)})
	if !ok || !sat {
		t.Fatal("x=5 should satisfy x>=5")
	}
	sat, ok = c.Eval(map[vardb.VarIndex]*big.Rat{0: r(4, 1)})
	if !ok || sat {
		t.Fatal("x=4 should not satisfy x>=5")
	}
	if _, ok := c.Eval(map[vardb.VarIndex]*big.Rat{}); ok {
		t.Fatal("Eval should report !ok when a variable is missing")
	}
}

func TestConstraint_Negate(t *testing.T) {
	// x - 5 > 0  (x > 5); negation is x <= 5, i.e. -x + 5 >= 0.
	c := New(map[vardb.VarIndex]*big.Rat{0: r(1, 1)}, r(-5, 1), GT)
	n := c.Negate()

	if n.Rel != GE {
		t.Fatalf("negated relation = %v, want GE", n.Rel)
	}
	sat, _ := n.Eval(map[vardb.VarIndex]*big.Rat{0: r(5, 1)})
	if !sat {
		t.Fatal("x=5 should satisfy the negation of x>5")
	}
	sat, _ = n.Eval(map[vardb.VarIndex]*big.Rat{0: r(6, 1)})
	if sat {
		t.Fatal("x=6 should not satisfy the negation of x>5")
	}
}

func TestConstraint_Eliminate(t *testing.T) {
	// x - y >= 0 (x >= y), y - 3 >= 0 (y >= 3) => eliminate y => x - 3 >= 0.
	cxy := New(map[vardb.VarIndex]*big.Rat{0: r(1, 1), 1: r(-1, 1)}, r(0, 1), GE)
	cy := New(map[vardb.VarIndex]*big.Rat{1: r(1, 1)}, r(-3, 1), GE)

	out := cxy.Eliminate(1, cy)
	if _, ok := out.Coeffs[1]; ok {
		t.Fatal("eliminated variable should not remain")
	}
	want := New(map[vardb.VarIndex]*big.Rat{0: r(1, 1)}, r(-3, 1), GE)
	if out.Coefficient(0).Cmp(want.Coefficient(0)) != 0 || out.Const.Cmp(want.Const) != 0 {
		t.Fatalf("Eliminate result = %+v, want x - 3 >= 0", out)
	}
}

func TestConstraint_Eliminate_StrictPropagates(t *testing.T) {
	cxy := New(map[vardb.VarIndex]*big.Rat{0: r(1, 1), 1: r(-1, 1)}, r(0, 1), GT)
	cy := New(map[vardb.VarIndex]*big.Rat{1: r(1, 1)}, r(-3, 1), GE)

	out := cxy.Eliminate(1, cy)
	if out.Rel != GT {
		t.Fatalf("Eliminate relation = %v, want GT since one input was strict", out.Rel)
	}
}

func TestConstraint_IsFalseConstant(t *testing.T) {
	falseC := New(nil, r(-1, 1), GE) // -1 >= 0, false
	if !falseC.IsFalseConstant() {
		t.Fatal("expected -1 >= 0 to be a false constant")
	}
	trueC := New(nil, r(1, 1), GE) // 1 >= 0, true
	if trueC.IsFalseConstant() {
		t.Fatal("expected 1 >= 0 not to be a false constant")
	}
}
