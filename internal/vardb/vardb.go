// Package vardb assigns dense integer ids, per type class, to every
// distinct term occurring in assertions (spec.md §4.2). It is the leaf
// owner of Variable identity: every other package refers to variables by
// value, never by pointer.
package vardb

// TypeIndex densely identifies a type class (Boolean, Integer, Real, ...).
type TypeIndex int

// VarIndex densely identifies a variable within its type class.
type VarIndex int

// Variable identifies a term: a dense id within a dense type class.
type Variable struct {
	Type  TypeIndex
	Index VarIndex
}

// Null returns the sentinel variable for the given type class.
func Null(t TypeIndex) Variable {
	return Variable{Type: t, Index: -1}
}

// IsNull reports whether v is the null sentinel for its type.
func (v Variable) IsNull() bool {
	return v.Index < 0
}

// NewVariableListener is notified whenever the database allocates a fresh
// variable. A context-dependent listener is additionally replayed, at
// registration, for every variable that already exists (see AddListener).
type NewVariableListener interface {
	NewVariable(v Variable)
}

type typeClass struct {
	name  string
	terms map[any]VarIndex
	// termOf is the inverse of terms for term-backed variables, nil for
	// transient (fresh, unnamed) ones; indexed by VarIndex.
	termOf []any
	count  VarIndex
}

type listenerEntry struct {
	listener     NewVariableListener
	contextDep   bool
	notifiedUpTo map[TypeIndex]VarIndex
}

// Database is the owner of variable identity across all type classes.
type Database struct {
	types     []typeClass
	typeIDs   map[string]TypeIndex
	listeners []*listenerEntry
}

// New returns an empty variable database.
func New() *Database {
	return &Database{typeIDs: map[string]TypeIndex{}}
}

// TypeIndexOf returns the dense id for the named type class, allocating one
// if this is the first time the name is seen.
func (db *Database) TypeIndexOf(name string) TypeIndex {
	if t, ok := db.typeIDs[name]; ok {
		return t
	}
	t := TypeIndex(len(db.types))
	db.typeIDs[name] = t
	db.types = append(db.types, typeClass{name: name, terms: map[any]VarIndex{}})
	return t
}

// AddListener registers l to be called on every future NewVariable. If
// contextDependent is true, l is additionally replayed (oldest first), at
// registration, for every variable that already exists in any type class.
// It is not re-notified on pop: this database has no backtrack context of
// its own (variable allocation is never undone by a plain pop, only by
// explicit GC), so the "context-dependent" replay contract here means
// "replay for everything that exists now", which is sufficient for table
// owners that attach after some variables already exist.
func (db *Database) AddListener(l NewVariableListener, contextDependent bool) {
	e := &listenerEntry{listener: l, contextDep: contextDependent, notifiedUpTo: map[TypeIndex]VarIndex{}}
	db.listeners = append(db.listeners, e)
	if contextDependent {
		for t, tc := range db.types {
			for i := VarIndex(0); i < tc.count; i++ {
				l.NewVariable(Variable{Type: TypeIndex(t), Index: i})
			}
			e.notifiedUpTo[TypeIndex(t)] = tc.count
		}
	}
}

// Variable returns the Variable for term within the given type class,
// allocating a fresh one (and firing new-variable notifications) if term
// has not been seen in that class before.
func (db *Database) Variable(t TypeIndex, term any) Variable {
	tc := &db.types[t]
	if idx, ok := tc.terms[term]; ok {
		return Variable{Type: t, Index: idx}
	}
	idx := tc.count
	tc.terms[term] = idx
	tc.termOf = append(tc.termOf, term)
	tc.count++
	v := Variable{Type: t, Index: idx}
	for _, e := range db.listeners {
		e.listener.NewVariable(v)
	}
	return v
}

// FreshVariable allocates a brand new variable in type class t that is not
// tied to any term (used for Tseitin auxiliary variables and the canonical
// true/false variables). Transient variables are not subject to GC
// relocation by term lookup; Collect keeps them at a fresh compacted index
// whenever they are present in the keep set.
func (db *Database) FreshVariable(t TypeIndex) Variable {
	tc := &db.types[t]
	idx := tc.count
	tc.termOf = append(tc.termOf, nil)
	tc.count++
	v := Variable{Type: t, Index: idx}
	for _, e := range db.listeners {
		e.listener.NewVariable(v)
	}
	return v
}

// Count returns the number of variables allocated in type class t.
func (db *Database) Count(t TypeIndex) VarIndex {
	return db.types[t].count
}

// RelocationMap maps old variable indices to new ones per type class,
// produced by Collect. A negative new index means the variable was not
// kept and has no valid relocation.
type RelocationMap struct {
	newIndex map[Variable]VarIndex
}

// Relocate returns the post-GC index for v, or -1 if v was not kept.
func (r *RelocationMap) Relocate(v Variable) Variable {
	if idx, ok := r.newIndex[v]; ok {
		return Variable{Type: v.Type, Index: idx}
	}
	return Variable{Type: v.Type, Index: -1}
}

// Collect compacts the ids of every type class so that only variables in
// keep survive, preserving relative order within each class. It returns the
// relocation map that every variable-keyed owner (trail, watch lists,
// arithmetic bounds) must apply to their own state. Collect does not touch
// the term cache consistency of classes beyond re-keying surviving terms;
// transient auxiliary variables (no term) are simply dropped if not kept.
func (db *Database) Collect(keep map[Variable]bool) *RelocationMap {
	rm := &RelocationMap{newIndex: map[Variable]VarIndex{}}
	for t := range db.types {
		tc := &db.types[t]
		newTerms := map[any]VarIndex{}
		newTermOf := make([]any, 0, len(tc.termOf))
		var next VarIndex
		for idx := VarIndex(0); idx < tc.count; idx++ {
			v := Variable{Type: TypeIndex(t), Index: idx}
			if !keep[v] {
				continue
			}
			rm.newIndex[v] = next
			if term := tc.termOf[idx]; term != nil {
				newTerms[term] = next
			}
			newTermOf = append(newTermOf, tc.termOf[idx])
			next++
		}
		tc.terms = newTerms
		tc.termOf = newTermOf
		tc.count = next
	}
	return rm
}
