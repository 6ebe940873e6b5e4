package network

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// SortedUnique returns the distinct values of xs in ascending order.
func SortedUnique[T constraints.Integer](xs []T) []T {
	if len(xs) == 0 {
		return []T{}
	}
	seen := make(map[T]struct{}, len(xs))
	out := make([]T, 0, len(xs))
	for _, x := range xs {
		if _, ok := seen[x]; ok {
			continue
		}
		seen[x] = struct{}{}
		out = append(out, x)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IndexSet is a set of row indices.
type IndexSet map[int]struct{}

// NewIndexSet creates a set holding xs.
func NewIndexSet(xs ...int) IndexSet {
	s := make(IndexSet, len(xs))
	for _, x := range xs {
		s[x] = struct{}{}
	}
	return s
}

// Add inserts xs.
func (s IndexSet) Add(xs ...int) {
	for _, x := range xs {
		s[x] = struct{}{}
	}
}

// Has reports membership.
func (s IndexSet) Has(x int) bool {
	_, ok := s[x]
	return ok
}

// Len returns the number of members.
func (s IndexSet) Len() int {
	return len(s)
}

// Sorted returns the members in ascending order.
func (s IndexSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for x := range s {
		out = append(out, x)
	}
	sort.Ints(out)
	return out
}

// ContainsAll reports whether every value of xs is in the set.
func (s IndexSet) ContainsAll(xs []int) bool {
	for _, x := range xs {
		if !s.Has(x) {
			return false
		}
	}
	return true
}

// ContainsAny reports whether any value of xs is in the set.
func (s IndexSet) ContainsAny(xs []int) bool {
	for _, x := range xs {
		if s.Has(x) {
			return true
		}
	}
	return false
}
