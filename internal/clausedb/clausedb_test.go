package clausedb

import (
	"testing"

	"github.com/dkarv/mcsat/internal/lit"
)

func TestNewClause_AndGet(t *testing.T) {
	db := NewDatabase()
	ruleID := db.RegisterRule("test")

	lits := []lit.Literal{lit.Positive(0), lit.Negative(1)}
	ref := db.NewClause(lits, ruleID)

	c := db.Get(ref)
	if len(c.Literals) != 2 || c.Literals[0] != lits[0] || c.Literals[1] != lits[1] {
		t.Fatalf("Get(ref).Literals = %v, want %v", c.Literals, lits)
	}
	if c.RuleID != ruleID {
		t.Fatalf("RuleID = %d, want %d", c.RuleID, ruleID)
	}

	// Mutating the caller's slice after the fact must not affect the stored
	// clause: NewClause must copy.
	lits[0] = lit.Negative(0)
	if c.Literals[0] != lit.Positive(0) {
		t.Fatalf("clause literals aliased caller slice")
	}
}

func TestRetainRelease_DrivesInUse(t *testing.T) {
	db := NewDatabase()
	ref := db.NewClause([]lit.Literal{lit.Positive(0), lit.Positive(1)}, 0)

	if db.Get(ref).InUse() {
		t.Fatal("fresh clause should not be InUse before Retain")
	}
	db.Retain(ref)
	if !db.Get(ref).InUse() {
		t.Fatal("clause should be InUse after Retain")
	}
	db.Release(ref)
	if db.Get(ref).InUse() {
		t.Fatal("clause should not be InUse after matching Release")
	}
}

func TestAddListener_ContextDependentReplay(t *testing.T) {
	db := NewDatabase()
	db.NewClause([]lit.Literal{lit.Positive(0), lit.Positive(1)}, 0)

	var seen int
	db.AddListener(newClauseFunc(func(CRef, *Clause) { seen++ }), true)
	if seen != 1 {
		t.Fatalf("replay saw %d clauses, want 1", seen)
	}

	db.NewClause([]lit.Literal{lit.Positive(2), lit.Positive(3)}, 0)
	if seen != 2 {
		t.Fatalf("after new clause, saw %d, want 2", seen)
	}
}

func TestCollect_DropsUnusedKeepsRetained(t *testing.T) {
	db := NewDatabase()
	a := db.NewClause([]lit.Literal{lit.Positive(0), lit.Positive(1)}, 0)
	b := db.NewClause([]lit.Literal{lit.Positive(2), lit.Positive(3)}, 0)
	db.Retain(a)

	rm := db.Collect(nil)

	if got := rm.Relocate(a); got.IsNull() {
		t.Fatal("retained clause a was dropped by Collect")
	}
	if got := rm.Relocate(b); !got.IsNull() {
		t.Fatal("unretained clause b should have been dropped by Collect")
	}
}

func TestAdopt_CopiesAcrossDatabases(t *testing.T) {
	farm := NewFarm()
	src := farm.NewDatabase()
	dst := farm.NewDatabase()

	ref := src.NewClause([]lit.Literal{lit.Positive(5), lit.Negative(6)}, 0)
	adopted := dst.Adopt(src, ref)

	got := dst.Get(adopted).Literals
	want := src.Get(ref).Literals
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Adopt literals = %v, want %v", got, want)
	}
}

type newClauseFunc func(CRef, *Clause)

func (f newClauseFunc) NewClause(ref CRef, c *Clause) { f(ref, c) }
