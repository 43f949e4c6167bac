// Package paramlist implements the singly-linked (name, Pointer) parameter
// list of spec.md §3/§4.3: an ordered, possibly-duplicate-keyed association
// list where lookups resolve to the first (head-most) matching entry.
//
// The "params" convention (a nested parameter list reachable under the
// reserved name "params") and the sibling-entry field-override convention
// are both just ordinary List values; this package does not special-case
// them, and no other package of this module interprets them either.
package paramlist

import "github.com/ivanp7/archipelago-sub002/typedptr"

// Entry is a single (name, value) node. Entry is cons-cell shaped rather
// than a slice element so that Lists can share common tails.
type Entry struct {
	Name  string
	Value typedptr.Pointer
	Next  *Entry
}

// List is a parameter list: a possibly-nil pointer to its head Entry. The
// zero List is the empty list.
type List struct {
	Head *Entry
}

// Prepend returns a new List with (name, value) as its new head, preceding
// all of l's existing entries. l is not mutated; the returned list shares
// l's tail.
func (l List) Prepend(name string, value typedptr.Pointer) List {
	return List{Head: &Entry{Name: name, Value: value, Next: l.Head}}
}

// Get returns the value of the first entry named name, walking head to
// tail, and whether such an entry exists. Earlier (head-ward) entries with
// a duplicated name shadow later ones.
func (l List) Get(name string) (typedptr.Pointer, bool) {
	for e := l.Head; e != nil; e = e.Next {
		if e.Name == name {
			return e.Value, true
		}
	}
	return typedptr.Pointer{}, false
}

// Has reports whether name appears anywhere in l.
func (l List) Has(name string) bool {
	_, ok := l.Get(name)
	return ok
}

// Len counts l's entries, including shadowed duplicates.
func (l List) Len() int {
	n := 0
	for e := l.Head; e != nil; e = e.Next {
		n++
	}
	return n
}

// IsEmpty reports whether l has no entries.
func (l List) IsEmpty() bool { return l.Head == nil }

// Each calls fn for every entry, head to tail, including shadowed
// duplicates. fn may return false to stop iteration early.
func (l List) Each(fn func(name string, value typedptr.Pointer) bool) {
	for e := l.Head; e != nil; e = e.Next {
		if !fn(e.Name, e.Value) {
			return
		}
	}
}

// Names returns the distinct entry names in first-occurrence order.
func (l List) Names() []string {
	seen := make(map[string]bool)
	var names []string
	l.Each(func(name string, _ typedptr.Pointer) bool {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return true
	})
	return names
}

// FromSlice builds a List from entries in head-to-tail order: entries[0]
// becomes the head and therefore wins any name collision.
func FromSlice(entries []Entry) List {
	var l List
	for i := len(entries) - 1; i >= 0; i-- {
		l = l.Prepend(entries[i].Name, entries[i].Value)
	}
	return l
}

// Concat returns a List whose entries are first's entries followed by
// second's, so that first's entries shadow same-named entries in second.
// Neither argument is mutated.
func Concat(first, second List) List {
	if first.IsEmpty() {
		return second
	}
	entries := make([]Entry, 0, first.Len())
	first.Each(func(name string, value typedptr.Pointer) bool {
		entries = append(entries, Entry{Name: name, Value: value})
		return true
	})
	l := second
	for i := len(entries) - 1; i >= 0; i-- {
		l = l.Prepend(entries[i].Name, entries[i].Value)
	}
	return l
}

// SubListKey is the reserved entry name of the "params" convention, under
// which an entry carries a whole nested parameter list. It keeps the
// convention's name in exactly one place; no function in this package
// looks it up.
const SubListKey = "params"

// Override reports the sibling-entry field-override convention used
// throughout the input format: a field named name may be overridden by an
// entry named name+"."+field, which Get resolves with the same first-wins
// rule as any other lookup.
func Override(name, field string) string {
	return name + "." + field
}
