package util

import "slices"

// An OrderedSet represents a set of strings that remembers the order in
// which its elements were first added. Two strings are deemed equal if their
// keys (as computed by the set's key function) are equal; the first-added
// spelling of an element is the one retained.
// The zero value is an empty set whose key function is the identity.
type OrderedSet struct {
	key   func(string) string
	elems []string
	keys  map[string]struct{}
}

// NewOrderedSet returns an empty OrderedSet that uses key to decide whether
// two strings denote the same element. If key is nil, elements are compared
// byte for byte.
func NewOrderedSet(key func(string) string) OrderedSet {
	return OrderedSet{key: key}
}

// Add adds e to set and reports whether set did not already contain e.
func (set *OrderedSet) Add(e string) bool {
	k := e
	if set.key != nil {
		k = set.key(e)
	}
	if _, found := set.keys[k]; found {
		return false
	}
	if set.keys == nil {
		set.keys = make(map[string]struct{})
	}
	set.keys[k] = struct{}{}
	set.elems = append(set.elems, e)
	return true
}

// Contains reports whether e is an element of set.
func (set OrderedSet) Contains(e string) bool {
	k := e
	if set.key != nil {
		k = set.key(e)
	}
	_, found := set.keys[k]
	return found
}

// Size returns the cardinality of set.
func (set OrderedSet) Size() int {
	return len(set.elems)
}

// ToSlice returns a slice of set's elements in insertion order.
func (set OrderedSet) ToSlice() []string {
	// We need defensive copying here because clients can mutate the result;
	// see (*corsguard.Middleware).Config.
	return slices.Clone(set.elems)
}
