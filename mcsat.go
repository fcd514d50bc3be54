// Package mcsat is the public facade of this module (spec.md §6): it wires
// the variable database, clause database, trail, BCP engine, arithmetic
// plugin, CNF collaborator and core loop into one object a caller only
// needs to feed assertions and ask Check on, the way yass.NewSolver wires
// its own internals behind one constructor.
package mcsat

import (
	"math/big"

	"github.com/dkarv/mcsat/internal/arith"
	"github.com/dkarv/mcsat/internal/bcp"
	"github.com/dkarv/mcsat/internal/btctx"
	"github.com/dkarv/mcsat/internal/clausedb"
	"github.com/dkarv/mcsat/internal/cnf"
	"github.com/dkarv/mcsat/internal/dimacsio"
	"github.com/dkarv/mcsat/internal/lit"
	"github.com/dkarv/mcsat/internal/solver"
	"github.com/dkarv/mcsat/internal/trail"
	"github.com/dkarv/mcsat/internal/vardb"
)

// Result mirrors solver.Result: Sat, Unsat, or Unknown (returned only if a
// future incremental/timeout feature stops the loop early; Check never
// returns it today).
type Result = solver.Result

const (
	Unknown = solver.Unknown
	Sat     = solver.Sat
	Unsat   = solver.Unsat
)

// Options configures every layer of the solver at construction time, per
// spec.md §6's configuration table. EnableArith toggles whether the linear
// arithmetic plugin (and the Real type class) is wired in at all; a
// pure-Boolean caller (e.g. the DIMACS CLI) leaves it false and pays
// nothing for it.
type Options struct {
	BCP         bcp.Options
	ClauseDecay float64
	// ReduceDBInterval is how many learnt clauses accumulate between
	// ReduceDB passes.
	ReduceDBInterval int
	EnableArith      bool
}

// DefaultOptions mirrors yass.DefaultOptions layered with this module's
// own solver.DefaultOptions.
var DefaultOptions = Options{
	BCP:              bcp.DefaultOptions,
	ClauseDecay:      solver.DefaultOptions.ClauseDecay,
	ReduceDBInterval: solver.DefaultOptions.ReduceDBInterval,
	EnableArith:      false,
}

// Solver is the assembled decision procedure: one shared variable
// database, clause arena and trail, with the registered plugins and the
// core loop driving them.
type Solver struct {
	ctx      *btctx.Context
	vdb      *vardb.Database
	cdb      *clausedb.Database
	tr       *trail.Trail
	boolType vardb.TypeIndex
	realType vardb.TypeIndex

	core  *solver.Solver
	bcp   *bcp.Engine
	arith *arith.Plugin
	cnf   *cnf.Stream
}

// New assembles a solver per opts. The canonical true/false Boolean
// variables are allocated and asserted at level 0 before any plugin is
// registered, the way the original seeds its search.
func New(opts Options) *Solver {
	ctx := btctx.New()
	vdb := vardb.New()
	boolType := vdb.TypeIndexOf("Bool")
	tr := trail.New(ctx, vdb, boolType)
	cdb := clausedb.NewDatabase()

	trueVar := vdb.FreshVariable(boolType)
	falseVar := vdb.FreshVariable(boolType)
	tr.AssertInitialTruths(trueVar, falseVar)

	core := solver.New(ctx, vdb, cdb, tr, boolType, solver.Options{
		ClauseDecay:      opts.ClauseDecay,
		ReduceDBInterval: opts.ReduceDBInterval,
	})

	s := &Solver{ctx: ctx, vdb: vdb, cdb: cdb, tr: tr, boolType: boolType, core: core}

	s.bcp = bcp.New(vdb, cdb, tr, boolType, opts.BCP)
	core.AddPlugin(s.bcp)

	if opts.EnableArith {
		s.realType = vdb.TypeIndexOf("Real")
		s.arith = arith.NewPlugin(ctx, vdb, cdb, tr, boolType, s.realType)
		core.AddPlugin(s.arith)
	}

	s.cnf = cnf.NewStream(ctx, vdb, cdb, boolType)

	return s
}

// AddAssertion adds one already-Boolean clause, e.g. the output of
// ConvertAssertion or a raw clause read from DIMACS (spec.md §6's
// Solver.addAssertion). If processImmediately, one propagation pass runs
// right away.
func (s *Solver) AddAssertion(literals []lit.Literal, processImmediately bool) {
	s.core.AddAssertion(literals, processImmediately)
}

// ConvertAssertion Tseitin-converts node via the CNF collaborator and
// asserts the resulting literal, combining internal/cnf's Convert with
// AddAssertion the way a caller working from a formula tree (rather than
// flat DIMACS clauses) needs to.
func (s *Solver) ConvertAssertion(node *cnf.Node, negated bool, processImmediately bool) {
	l := s.cnf.Convert(node, negated)
	s.AddAssertion([]lit.Literal{l}, processImmediately)
}

// AssertArithmetic asserts a linear arithmetic constraint directly (rather
// than through a Boolean atom the CNF layer introduced), requiring
// Options.EnableArith. It returns the constraint's constraint-atom
// literal, mirroring arith.Plugin.Assert.
func (s *Solver) AssertArithmetic(c arith.Constraint, processImmediately bool) lit.Literal {
	if s.arith == nil {
		panic("mcsat: AssertArithmetic requires Options.EnableArith")
	}
	l := s.arith.Assert(c)
	s.AddAssertion([]lit.Literal{l}, processImmediately)
	return l
}

// NewArithmeticVariable requests (or looks up) the Real-typed variable
// backing term, for building arith.Constraint values to pass to
// AssertArithmetic.
func (s *Solver) NewArithmeticVariable(term any) vardb.Variable {
	if s.arith == nil {
		panic("mcsat: NewArithmeticVariable requires Options.EnableArith")
	}
	return s.vdb.Variable(s.realType, term)
}

// NewIntegerVariable is NewArithmeticVariable for a variable that ranges
// over the integers: Check's model-construction decisions for it are
// rounded rather than picked as arbitrary rationals (spec.md §8's
// "Integer-typed decisions return integer-valued picks").
func (s *Solver) NewIntegerVariable(term any) vardb.Variable {
	v := s.NewArithmeticVariable(term)
	s.arith.MarkInteger(v.Index)
	return v
}

// dimacsSink adapts Solver to dimacsio.ClauseSink without exposing the
// solver's internal databases to callers.
type dimacsSink struct{ s *Solver }

func (d dimacsSink) AddAssertion(literals []lit.Literal) {
	d.s.AddAssertion(literals, false)
}

// LoadDIMACS reads a DIMACS CNF file directly into this solver, the
// Boolean-only ingestion path the CLI and golden tests use (spec.md §1's
// CNF conversion is out of core scope; DIMACS clauses need no conversion
// at all).
func (s *Solver) LoadDIMACS(filename string, gzipped bool) error {
	return dimacsio.Load(filename, gzipped, s.vdb, s.boolType, dimacsSink{s})
}

// Check runs the main loop to completion (spec.md §6's Solver.check).
func (s *Solver) Check() Result {
	return s.core.Check()
}

// BooleanValue reports the current trail value of a Boolean atom, true
// only once Check has returned Sat.
func (s *Solver) BooleanValue(l lit.Literal) bool {
	return s.tr.IsTrue(l)
}

// ArithmeticValue reports the rational value Check's model assigns to an
// arithmetic variable, and whether it has one at all, valid only once
// Check has returned Sat.
func (s *Solver) ArithmeticValue(v vardb.Variable) (*big.Rat, bool) {
	return s.tr.RatValue(v)
}

// NumConflicts reports how many conflicts the core has resolved so far.
func (s *Solver) NumConflicts() int { return s.core.NumConflicts() }

// NumLearnts reports how many learnt clauses the core currently retains.
func (s *Solver) NumLearnts() int { return s.core.NumLearnts() }
