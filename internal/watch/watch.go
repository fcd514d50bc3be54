// Package watch implements the per-literal and per-variable-list watch
// arrays shared by the BCP and arithmetic plugins (spec.md §4.5), with lazy
// cleanup and a move-only remove-iterator. Grounded on yass.Solver's
// watchers/Watch/Unwatch/tmpWatchers swap-remove idiom
// (internal/sat/solver.go Propagate) and, for the variable-list variant, on
// original_source/src/mcsat/fm/assigned_watch_manager.h's remove_iterator.
package watch

// InUse reports whether an entry is still live. Lists are cleaned lazily:
// entries are only actually removed when Clean runs over a list marked
// needsCleanup.
type InUse[E any] interface {
	InUse(e E) bool
}

// List is a per-key array of watch entries with lazy cleanup.
type List[K comparable, E any] struct {
	lists        map[K][]E
	needsCleanup map[K]bool
	inUse        InUse[E]
}

// NewList returns an empty watch-list table. inUse decides, during Clean,
// whether a given entry is still live; entries that are not are dropped.
func NewList[K comparable, E any](inUse InUse[E]) *List[K, E] {
	return &List[K, E]{
		lists:        map[K][]E{},
		needsCleanup: map[K]bool{},
		inUse:        inUse,
	}
}

// Add appends e to the watch list for key.
func (l *List[K, E]) Add(key K, e E) {
	l.lists[key] = append(l.lists[key], e)
}

// Get returns the (possibly stale) entries for key.
func (l *List[K, E]) Get(key K) []E {
	return l.lists[key]
}

// Len returns the number of (possibly stale) entries for key.
func (l *List[K, E]) Len(key K) int {
	return len(l.lists[key])
}

// MarkNeedsCleanup flags key's list for lazy purge of non-in-use entries.
func (l *List[K, E]) MarkNeedsCleanup(key K) {
	l.needsCleanup[key] = true
}

// Clean purges stale entries from every list flagged by MarkNeedsCleanup,
// preserving the original order among survivors (spec.md §4.5 invariant).
func (l *List[K, E]) Clean() {
	for key := range l.needsCleanup {
		entries := l.lists[key]
		j := 0
		for i := range entries {
			if l.inUse.InUse(entries[i]) {
				entries[j] = entries[i]
				j++
			}
		}
		l.lists[key] = entries[:j]
	}
	l.needsCleanup = map[K]bool{}
}

// Step is the outcome of advancing a RemoveIterator.
type Step int

const (
	// Done means iteration has finished.
	Done Step = iota
	// Kept means the current entry was examined and should remain.
	Kept
	// Removed means the current entry was examined and should be dropped.
	Removed
)

// RemoveIterator is a finite, move-only, non-restartable positional
// iterator over one key's watch list: each step is a decision to keep or
// remove the entry just visited. Finish truncates the underlying list to
// the kept entries; Rest first keeps every unvisited entry and then
// finishes. Until one of them is called, the stored list is not shortened.
type RemoveIterator[K comparable, E any] struct {
	list    *List[K, E]
	key     K
	entries []E
	read    int // next unread position
	write   int // next write position for kept entries
	done    bool
}

// Iter starts a remove-iterator over key's list.
func (l *List[K, E]) Iter(key K) *RemoveIterator[K, E] {
	return &RemoveIterator[K, E]{list: l, key: key, entries: l.lists[key]}
}

// Next advances to the next unread entry, returning it and whether there
// was one.
func (it *RemoveIterator[K, E]) Next() (E, bool) {
	var zero E
	if it.done || it.read >= len(it.entries) {
		return zero, false
	}
	e := it.entries[it.read]
	it.read++
	return e, true
}

// Keep retains the entry most recently returned by Next.
func (it *RemoveIterator[K, E]) Keep(e E) {
	it.entries[it.write] = e
	it.write++
}

// Remove drops the entry most recently returned by Next (a no-op on the
// underlying slice beyond not advancing write).
func (it *RemoveIterator[K, E]) Remove() {}

// Rest copies the remaining unread entries, keeping them as-is, and ends
// iteration. Used when the remainder of the list does not need
// per-element inspection (e.g. after a conflict is found mid-scan).
func (it *RemoveIterator[K, E]) Rest() {
	for ; it.read < len(it.entries); it.read++ {
		it.entries[it.write] = it.entries[it.read]
		it.write++
	}
	it.Finish()
}

// Finish truncates the underlying list to the kept prefix. It is
// idempotent and safe to call via defer even if Next was never called to
// exhaustion.
func (it *RemoveIterator[K, E]) Finish() {
	if it.done {
		return
	}
	it.list.lists[it.key] = it.entries[:it.write]
	it.done = true
}
