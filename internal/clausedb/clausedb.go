// Package clausedb implements the clause arena: bump-allocated, reference-
// counted clause storage with compacting GC (spec.md §4.3). It is grounded
// on yass's slice-pooled clause allocator (internal/sat/clauses_alloc.go,
// internal/sat/clause_allocpool.go) generalized from "clause owned directly
// by the one Solver" to "clause owned by an arena that can be shared,
// GC'd, and adopted across sibling databases".
package clausedb

import (
	"math/bits"
	"sync"

	"github.com/dkarv/mcsat/internal/lit"
)

// Clause is a packed, reference-counted literal array plus the id of the
// rule that produced it (spec.md §3, "Clause"). Literals may be reordered
// in place for watched-literal maintenance.
type Clause struct {
	Literals []lit.Literal
	RuleID   uint8
	refCount int32
	deleted  bool
}

// InUse reports whether the clause's reference count is positive.
func (c *Clause) InUse() bool {
	return !c.deleted && c.refCount > 0
}

// CRef is a weak (database-id, offset) reference to a clause. The zero
// value is not meaningful; use Null.
type CRef struct {
	db  uint16
	idx int32
}

// Null is the distinguished non-reference value.
var Null = CRef{idx: -1}

// IsNull reports whether r is the Null reference.
func (r CRef) IsNull() bool {
	return r.idx < 0
}

// NewClauseListener is notified of every clause creation. A context-
// dependent listener additionally receives every clause that already
// existed at registration time (spec.md §4.3).
type NewClauseListener interface {
	NewClause(ref CRef, c *Clause)
}

type listenerEntry struct {
	listener   NewClauseListener
	contextDep bool
}

// Literal-slice pools sized by capacity class, adapted from
// yass/internal/sat/clauses_alloc.go.
const nPools = 4
const lastPoolCap = 1 << nPools

var litPools [nPools]sync.Pool

func init() {
	for i := 0; i < nPools; i++ {
		capa := 1 << (i + 1)
		litPools[i].New = func() any {
			s := make([]lit.Literal, 0, capa)
			return &s
		}
	}
}

func poolIndex(capa int) int {
	if capa >= lastPoolCap {
		return nPools - 1
	}
	p := bits.Len(uint(capa)) - 1
	if p < 0 {
		return 0
	}
	if capa < (1 << p) {
		p--
	}
	return p
}

func allocLiterals(capa int) []lit.Literal {
	ref := litPools[poolIndex(capa)].Get().(*[]lit.Literal)
	s := (*ref)[:0]
	if cap(s) < capa {
		s = make([]lit.Literal, 0, capa)
	}
	return s
}

func freeLiterals(s []lit.Literal) {
	s = s[:0]
	litPools[poolIndex(cap(s))].Put(&s)
}

// Database is one clause arena. Several Databases can share a Farm so that
// clauses can be adopted between them.
type Database struct {
	id        uint16
	clauses   []*Clause
	listeners []listenerEntry
	ruleNames []string
}

// Farm is a named collection of sibling Databases.
type Farm struct {
	dbs []*Database
}

// NewFarm returns an empty farm.
func NewFarm() *Farm {
	return &Farm{}
}

// NewDatabase allocates a fresh database within the farm.
func (f *Farm) NewDatabase() *Database {
	db := &Database{id: uint16(len(f.dbs))}
	f.dbs = append(f.dbs, db)
	return db
}

// NewDatabase returns a standalone database not part of any farm (the
// common case: one arena per solver instance).
func NewDatabase() *Database {
	return &Database{}
}

// RegisterRule hands out a dense rule id to a Proof Rule at construction
// time (spec.md §4.3, "Per-database registered rule-ids").
func (db *Database) RegisterRule(name string) uint8 {
	id := uint8(len(db.ruleNames))
	db.ruleNames = append(db.ruleNames, name)
	return id
}

// RuleName returns the name registered for ruleID.
func (db *Database) RuleName(ruleID uint8) string {
	return db.ruleNames[ruleID]
}

// AddListener registers l for future clause creations. If contextDependent
// is true, l is immediately replayed for every clause that already exists.
func (db *Database) AddListener(l NewClauseListener, contextDependent bool) {
	db.listeners = append(db.listeners, listenerEntry{listener: l, contextDep: contextDependent})
	if contextDependent {
		for i, c := range db.clauses {
			if c != nil {
				l.NewClause(CRef{db: db.id, idx: int32(i)}, c)
			}
		}
	}
}

// NewClause copies literals into a fresh pooled slice and commits it to the
// arena, firing new-clause notifications.
func (db *Database) NewClause(literals []lit.Literal, ruleID uint8) CRef {
	buf := allocLiterals(len(literals))
	buf = append(buf, literals...)
	c := &Clause{Literals: buf, RuleID: ruleID}
	idx := int32(len(db.clauses))
	db.clauses = append(db.clauses, c)
	ref := CRef{db: db.id, idx: idx}
	for _, e := range db.listeners {
		e.listener.NewClause(ref, c)
	}
	return ref
}

// Get dereferences a CRef. Panics if ref belongs to a different database,
// which is always a caller bug.
func (db *Database) Get(ref CRef) *Clause {
	if ref.db != db.id {
		panic("clausedb: CRef does not belong to this database")
	}
	return db.clauses[ref.idx]
}

// Retain increments the clause's reference count.
func (db *Database) Retain(ref CRef) {
	db.Get(ref).refCount++
}

// Release decrements the clause's reference count. A clause reaching zero
// becomes eligible for the next Collect but is not eagerly freed: clauses
// are compacted only by GC, matching spec.md's "GC compacts the arena"
// model rather than eager refcounted deletion.
func (db *Database) Release(ref CRef) {
	c := db.Get(ref)
	c.refCount--
	if c.refCount <= 0 {
		c.deleted = true
	}
}

// StrongRef is a CRef paired with the database that owns it, incrementing
// the clause's reference count on construction. Go has no destructors, so
// callers must call Release explicitly when done -- the idiomatic
// adaptation of spec.md's "increments/decrements on construction/
// destruction/assignment" to a GC'd language.
type StrongRef struct {
	Ref CRef
	db  *Database
}

// NewStrongRef retains ref and returns a StrongRef owning that retention.
func NewStrongRef(db *Database, ref CRef) StrongRef {
	db.Retain(ref)
	return StrongRef{Ref: ref, db: db}
}

// Release drops the retention held by s.
func (s StrongRef) Release() {
	if !s.Ref.IsNull() {
		s.db.Release(s.Ref)
	}
}

// Adopt copies a clause from a sibling database (possibly in another Farm
// member) into db, returning the new reference.
func (db *Database) Adopt(src *Database, ref CRef) CRef {
	c := src.Get(ref)
	return db.NewClause(c.Literals, c.RuleID)
}

// RelocationMap maps old offsets in one database to new ones after Collect.
type RelocationMap struct {
	newIndex map[int32]int32
}

// Relocate returns the post-GC reference for ref, or Null if it was not
// kept.
func (r *RelocationMap) Relocate(ref CRef) CRef {
	if idx, ok := r.newIndex[ref.idx]; ok {
		return CRef{db: ref.db, idx: idx}
	}
	return Null
}

// Collect compacts the arena, keeping only the clauses named in keep (in
// addition to any clause with a positive reference count). It frees the
// pooled literal slices of every dropped clause.
func (db *Database) Collect(keep map[CRef]bool) *RelocationMap {
	rm := &RelocationMap{newIndex: map[int32]int32{}}
	newClauses := make([]*Clause, 0, len(db.clauses))
	for i, c := range db.clauses {
		if c == nil {
			continue
		}
		ref := CRef{db: db.id, idx: int32(i)}
		if !c.InUse() && !keep[ref] {
			freeLiterals(c.Literals)
			continue
		}
		rm.newIndex[int32(i)] = int32(len(newClauses))
		newClauses = append(newClauses, c)
	}
	db.clauses = newClauses
	return rm
}
