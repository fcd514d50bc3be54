package cnf

import (
	"github.com/dkarv/mcsat/internal/btctx"
	"github.com/dkarv/mcsat/internal/clausedb"
	"github.com/dkarv/mcsat/internal/lit"
	"github.com/dkarv/mcsat/internal/rules"
	"github.com/dkarv/mcsat/internal/vardb"
)

// Stream is a CnfStream: it converts Node trees to literals, emitting the
// auxiliary Tseitin clauses that make the translation equisatisfiable
// through its own proof rule (clauses still only ever come from a rule,
// never from ad hoc db writes). Every emitted clause is retained in the
// clause database, so BCP keeps watching it. The Node ↔ Literal cache is
// anchored to ctx so that formulas translated inside a pushed scope are
// forgotten, and can be translated afresh, once that scope pops.
type Stream struct {
	ctx      *btctx.Context
	vdb      *vardb.Database
	cdb      *clausedb.Database
	boolType vardb.TypeIndex
	rule     rules.Base

	nodeLit map[*Node]lit.Literal
}

// NewStream constructs a Stream over the shared variable and clause
// databases. boolType must be the dense Boolean type class the rest of the
// solver uses for literals.
func NewStream(ctx *btctx.Context, vdb *vardb.Database, cdb *clausedb.Database, boolType vardb.TypeIndex) *Stream {
	return &Stream{
		ctx:      ctx,
		vdb:      vdb,
		cdb:      cdb,
		boolType: boolType,
		rule:     rules.NewBase(cdb, "mcsat::cnf_stream"),
		nodeLit:  map[*Node]lit.Literal{},
	}
}

// HasLiteral reports whether n has already been translated.
func (s *Stream) HasLiteral(n *Node) bool {
	_, ok := s.nodeLit[n]
	return ok
}

// Literal returns the literal already assigned to n, panicking if n has
// never been translated (mirrors CnfStream::getLiteral's assertion).
func (s *Stream) Literal(n *Node) lit.Literal {
	l, ok := s.nodeLit[n]
	if !ok {
		panic("cnf: literal not in cache for node")
	}
	return l
}

// Convert translates node into a literal, emitting whatever Tseitin clauses
// are needed along the way, and returns that literal negated if requested.
// The caller is responsible for asserting the result (via the core's own
// AddAssertion), the same division of labor the core already uses for
// every other clause-producing input.
func (s *Stream) Convert(node *Node, negated bool) lit.Literal {
	l := s.literalOf(node)
	if negated {
		l = l.Opposite()
	}
	return l
}

func (s *Stream) literalOf(n *Node) lit.Literal {
	if n.Kind == Not {
		return s.literalOf(n.Children[0]).Opposite()
	}
	if l, ok := s.nodeLit[n]; ok {
		return l
	}
	switch n.Kind {
	case Atom:
		return s.convertAtom(n)
	case And:
		return s.convertAnd(n)
	case Or:
		return s.convertOr(n)
	default:
		panic("cnf: unknown node kind")
	}
}

func (s *Stream) convertAtom(n *Node) lit.Literal {
	v := s.vdb.Variable(s.boolType, n.Term)
	l := lit.Positive(v.Index)
	s.cache(n, l)
	return l
}

// convertAnd introduces a fresh literal l standing for n and asserts
// l <-> (c1 ^ ... ^ cn): one binary clause per child (l => ci) plus one
// clause carrying l and every child negated (the conjunction of the
// children => l).
func (s *Stream) convertAnd(n *Node) lit.Literal {
	children := s.childLiterals(n)
	l := s.freshCached(n)

	for _, c := range children {
		s.cdb.Retain(s.rule.Commit([]lit.Literal{l.Opposite(), c}))
	}
	clause := make([]lit.Literal, 0, len(children)+1)
	clause = append(clause, l)
	for _, c := range children {
		clause = append(clause, c.Opposite())
	}
	s.cdb.Retain(s.rule.Commit(clause))

	return l
}

// convertOr introduces a fresh literal l standing for n and asserts
// l <-> (c1 v ... v cn): one binary clause per child (ci => l) plus one
// clause carrying every child (l => the disjunction).
func (s *Stream) convertOr(n *Node) lit.Literal {
	children := s.childLiterals(n)
	l := s.freshCached(n)

	for _, c := range children {
		s.cdb.Retain(s.rule.Commit([]lit.Literal{c.Opposite(), l}))
	}
	clause := make([]lit.Literal, 0, len(children)+1)
	clause = append(clause, l.Opposite())
	clause = append(clause, children...)
	s.cdb.Retain(s.rule.Commit(clause))

	return l
}

func (s *Stream) childLiterals(n *Node) []lit.Literal {
	out := make([]lit.Literal, len(n.Children))
	for i, c := range n.Children {
		out[i] = s.literalOf(c)
	}
	return out
}

func (s *Stream) freshCached(n *Node) lit.Literal {
	v := s.vdb.FreshVariable(s.boolType)
	l := lit.Positive(v.Index)
	s.cache(n, l)
	return l
}

// cache records n's literal and, unless at level 0 (where the mapping is
// permanent by construction), schedules its removal on the next pop of the
// current scope.
func (s *Stream) cache(n *Node, l lit.Literal) {
	s.nodeLit[n] = l
	s.ctx.Register(btctx.ObserverFunc(func() {
		delete(s.nodeLit, n)
	}))
}
