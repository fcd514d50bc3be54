// Package cnf is the CNF Interface collaborator (spec.md §4.10): it owns
// the Node ↔ Literal mapping under the backtrack context and converts a
// Boolean formula into clauses via Tseitin transformation, notifying the
// clause database's own listeners rather than a bespoke output list.
// Grounded on original_source/src/mcsat/cnf/cnf_stream.{h,cpp}.
package cnf

// Kind distinguishes the shapes a Node can take.
type Kind int

const (
	// Atom wraps an opaque term; two Atom nodes with equal Term dedup to
	// the same Boolean variable via vardb, the same way distinct
	// occurrences of one term do anywhere else in this codebase.
	Atom Kind = iota
	Not
	And
	Or
)

// Node is a Boolean formula tree. Atom nodes carry a Term (any comparable
// value identifying the underlying proposition); And/Or nodes carry two or
// more Children; Not carries exactly one.
type Node struct {
	Kind     Kind
	Term     any
	Children []*Node
}

// NewAtom wraps term as a leaf proposition.
func NewAtom(term any) *Node {
	return &Node{Kind: Atom, Term: term}
}

// NewNot negates n. Never itself assigned a literal: translation always
// flips the child's literal instead, matching cnf_stream.cpp's
// Assert(node.getKind() != kind::NOT) in newLiteral.
func NewNot(n *Node) *Node {
	return &Node{Kind: Not, Children: []*Node{n}}
}

// NewAnd conjoins two or more children.
func NewAnd(children ...*Node) *Node {
	if len(children) < 2 {
		panic("cnf: And needs at least two children")
	}
	return &Node{Kind: And, Children: children}
}

// NewOr disjoins two or more children.
func NewOr(children ...*Node) *Node {
	if len(children) < 2 {
		panic("cnf: Or needs at least two children")
	}
	return &Node{Kind: Or, Children: children}
}
