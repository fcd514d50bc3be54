// Package dimacsio is a boundary adapter from Boolean-only DIMACS CNF text
// to this module's vardb/clausedb/lit types, used by the CLI and golden
// tests. It is a collaborator of a collaborator: spec.md §1 scopes CNF
// conversion itself out of the core, and this package is simpler still --
// DIMACS already comes flattened to clauses, so there is no formula tree to
// Tseitin-convert (that is internal/cnf's job for richer input).
// Grounded on yass/parsers.LoadDIMACS/ReadModels, which wrap
// github.com/rhartert/dimacs.ReadBuilder the same way.
package dimacsio

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/rhartert/dimacs"

	"github.com/dkarv/mcsat/internal/lit"
	"github.com/dkarv/mcsat/internal/vardb"
)

// ClauseSink receives one already-Boolean clause per DIMACS clause line. It
// is satisfied directly by solver.Solver.AddAssertion modulo the
// processImmediately argument, so callers typically pass a small closure.
type ClauseSink interface {
	AddAssertion(literals []lit.Literal)
}

func openMaybeGzipped(filename string, gzipped bool) (io.ReadCloser, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	rc := io.ReadCloser(f)
	if gzipped {
		rc, err = gzip.NewReader(rc)
		if err != nil {
			f.Close()
			return nil, err
		}
	}
	return rc, nil
}

// Load parses a DIMACS CNF file, allocates one fresh vdb variable per
// declared variable (DIMACS variable k is the k-th variable allocated, after
// any that already exist in boolType), and forwards every parsed clause to
// sink as a []lit.Literal.
func Load(filename string, gzipped bool, vdb *vardb.Database, boolType vardb.TypeIndex, sink ClauseSink) error {
	rc, err := openMaybeGzipped(filename, gzipped)
	if err != nil {
		return fmt.Errorf("dimacsio: opening %q: %w", filename, err)
	}
	defer rc.Close()

	b := &clauseBuilder{vdb: vdb, boolType: boolType, sink: sink}
	if err := dimacs.ReadBuilder(rc, b); err != nil {
		return fmt.Errorf("dimacsio: parsing %q: %w", filename, err)
	}
	return nil
}

// clauseBuilder implements dimacs.Builder over this module's types.
type clauseBuilder struct {
	vdb      *vardb.Database
	boolType vardb.TypeIndex
	sink     ClauseSink
	base     vardb.VarIndex // index allocated for DIMACS variable 1
}

func (b *clauseBuilder) Problem(problem string, nVars int, nClauses int) error {
	if problem != "cnf" {
		return fmt.Errorf("dimacsio: instance of type %q not supported", problem)
	}
	b.base = b.vdb.Count(b.boolType)
	for i := 0; i < nVars; i++ {
		b.vdb.FreshVariable(b.boolType)
	}
	return nil
}

func (b *clauseBuilder) Clause(tmp []int) error {
	clause := make([]lit.Literal, len(tmp))
	for i, l := range tmp {
		if l < 0 {
			clause[i] = lit.Negative(b.base + vardb.VarIndex(-l-1))
		} else {
			clause[i] = lit.Positive(b.base + vardb.VarIndex(l-1))
		}
	}
	b.sink.AddAssertion(clause)
	return nil
}

func (b *clauseBuilder) Comment(_ string) error { return nil }

// ReadModels parses a file holding one or more models, one clause-shaped
// line per model (positive entries true, negative false, order = variable
// index), the format golden tests store expected satisfying assignments in.
func ReadModels(filename string) ([][]bool, error) {
	rc, err := openMaybeGzipped(filename, false)
	if err != nil {
		return nil, fmt.Errorf("dimacsio: opening %q: %w", filename, err)
	}
	defer rc.Close()

	b := &modelBuilder{}
	if err := dimacs.ReadBuilder(rc, b); err != nil {
		return nil, fmt.Errorf("dimacsio: parsing %q: %w", filename, err)
	}
	return b.models, nil
}

type modelBuilder struct {
	models [][]bool
}

func (b *modelBuilder) Problem(problem string, nVars int, nClauses int) error {
	return fmt.Errorf("dimacsio: model files should not have a problem line")
}

func (b *modelBuilder) Comment(_ string) error { return nil }

func (b *modelBuilder) Clause(tmp []int) error {
	model := make([]bool, len(tmp))
	for i, l := range tmp {
		model[i] = l > 0
	}
	b.models = append(b.models, model)
	return nil
}
