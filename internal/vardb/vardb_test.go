package vardb

import "testing"

func TestVariable_Idempotent(t *testing.T) {
	db := New()
	bools := db.TypeIndexOf("Bool")

	p1 := db.Variable(bools, "p")
	p2 := db.Variable(bools, "p")
	q := db.Variable(bools, "q")

	if p1 != p2 {
		t.Fatalf("Variable(p) not idempotent: %v != %v", p1, p2)
	}
	if p1 == q {
		t.Fatalf("distinct terms got the same variable: %v", p1)
	}
	if db.Count(bools) != 2 {
		t.Fatalf("Count() = %d, want 2", db.Count(bools))
	}
}

func TestAddListener_ContextDependentReplaysExisting(t *testing.T) {
	db := New()
	bools := db.TypeIndexOf("Bool")
	db.Variable(bools, "p")
	db.Variable(bools, "q")

	var seen []Variable
	rec := recorderListener(func(v Variable) { seen = append(seen, v) })
	db.AddListener(rec, true)

	if len(seen) != 2 {
		t.Fatalf("got %d replayed variables, want 2", len(seen))
	}

	db.Variable(bools, "r")
	if len(seen) != 3 {
		t.Fatalf("got %d variables after new allocation, want 3", len(seen))
	}
}

func TestCollect_CompactsAndRelocates(t *testing.T) {
	db := New()
	bools := db.TypeIndexOf("Bool")
	p := db.Variable(bools, "p")
	q := db.Variable(bools, "q")
	r := db.Variable(bools, "r")

	rm := db.Collect(map[Variable]bool{p: true, r: true})

	if got := rm.Relocate(q); !got.IsNull() {
		t.Fatalf("Relocate(q) = %v, want null (not kept)", got)
	}
	if got := rm.Relocate(p); got.Index != 0 {
		t.Fatalf("Relocate(p) = %v, want index 0", got)
	}
	if got := rm.Relocate(r); got.Index != 1 {
		t.Fatalf("Relocate(r) = %v, want index 1", got)
	}
	if db.Count(bools) != 2 {
		t.Fatalf("Count() after Collect = %d, want 2", db.Count(bools))
	}

	// p's term identity survives under its new index.
	if got := db.Variable(bools, "p"); got.Index != 0 {
		t.Fatalf("Variable(p) after Collect = %v, want index 0", got)
	}
}

type recorderListener func(Variable)

func (f recorderListener) NewVariable(v Variable) { f(v) }
