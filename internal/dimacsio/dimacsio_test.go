package dimacsio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dkarv/mcsat/internal/lit"
	"github.com/dkarv/mcsat/internal/vardb"
)

type recordingSink struct {
	clauses [][]lit.Literal
}

func (r *recordingSink) AddAssertion(literals []lit.Literal) {
	r.clauses = append(r.clauses, append([]lit.Literal(nil), literals...))
}

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instance.cnf")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_ParsesProblemAndClauses(t *testing.T) {
	path := writeTemp(t, "c a comment\np cnf 3 2\n1 -2 0\n-1 3 0\n")

	vdb := vardb.New()
	boolType := vdb.TypeIndexOf("Bool")
	sink := &recordingSink{}

	if err := Load(path, false, vdb, boolType, sink); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := vdb.Count(boolType); got != 3 {
		t.Fatalf("Count(boolType) = %d, want 3", got)
	}
	if len(sink.clauses) != 2 {
		t.Fatalf("got %d clauses, want 2", len(sink.clauses))
	}

	want0 := []lit.Literal{lit.Positive(0), lit.Negative(1)}
	if !literalsEqual(sink.clauses[0], want0) {
		t.Fatalf("clause 0 = %v, want %v", sink.clauses[0], want0)
	}
	want1 := []lit.Literal{lit.Negative(0), lit.Positive(2)}
	if !literalsEqual(sink.clauses[1], want1) {
		t.Fatalf("clause 1 = %v, want %v", sink.clauses[1], want1)
	}
}

func literalsEqual(a, b []lit.Literal) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestReadModels_ParsesOneRowPerLine(t *testing.T) {
	path := writeTemp(t, "1 -2 3 0\n-1 -2 -3 0\n")

	models, err := ReadModels(path)
	if err != nil {
		t.Fatalf("ReadModels: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}
	want0 := []bool{true, false, true}
	for i, v := range want0 {
		if models[0][i] != v {
			t.Fatalf("model 0[%d] = %v, want %v", i, models[0][i], v)
		}
	}
}

func TestLoad_RejectsNonCNFProblem(t *testing.T) {
	path := writeTemp(t, "p wcnf 1 1\n1 0\n")

	vdb := vardb.New()
	boolType := vdb.TypeIndexOf("Bool")
	sink := &recordingSink{}

	if err := Load(path, false, vdb, boolType, sink); err == nil {
		t.Fatal("expected an error for a non-cnf problem line")
	}
}
