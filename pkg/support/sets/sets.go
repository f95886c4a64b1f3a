// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sets implement a set type as a `map[T]struct{}` but with better ergonomics, and an
// insertion-ordered variant.
package sets

import (
	"cmp"
	"maps"
	"slices"
)

// Set implements a Set for the key type T.
type Set[T comparable] map[T]struct{}

// Make returns an empty Set of the given type. Size is optional, and if given
// will reserve the expected size.
func Make[T comparable](size ...int) Set[T] {
	if len(size) == 0 {
		return make(Set[T])
	}
	return make(Set[T], size[0])
}

// MakeWith creates a Set[T] with the given elements inserted.
func MakeWith[T comparable](elements ...T) Set[T] {
	s := Make[T](len(elements))
	s.Insert(elements...)
	return s
}

// Has returns true if Set s has the given key.
func (s Set[T]) Has(key T) bool {
	_, found := s[key]
	return found
}

// Insert keys into set.
func (s Set[T]) Insert(keys ...T) {
	for _, key := range keys {
		s[key] = struct{}{}
	}
}

// Remove keys from the set. Keys not in the set are ignored.
func (s Set[T]) Remove(keys ...T) {
	for _, key := range keys {
		delete(s, key)
	}
}

// Intersects returns whether s and s2 have at least one element in common.
func (s Set[T]) Intersects(s2 Set[T]) bool {
	small, large := s, s2
	if len(small) > len(large) {
		small, large = large, small
	}
	for k := range small {
		if large.Has(k) {
			return true
		}
	}
	return false
}

// Equal returns whether s and s2 have the exact same elements.
func (s Set[T]) Equal(s2 Set[T]) bool {
	if len(s) != len(s2) {
		return false
	}
	for k := range s {
		if !s2.Has(k) {
			return false
		}
	}
	return true
}

// Sorted returns the elements of the set in ascending order.
func Sorted[T cmp.Ordered](s Set[T]) []T {
	return slices.Sorted(maps.Keys(s))
}

// Ordered is a set that keeps its elements in insertion order. The zero value is not usable, create
// it with MakeOrdered.
type Ordered[T comparable] struct {
	seen  Set[T]
	order []T
}

// MakeOrdered returns an empty Ordered set. Size is optional, and if given will reserve the
// expected size.
func MakeOrdered[T comparable](size ...int) *Ordered[T] {
	o := &Ordered[T]{seen: Make[T](size...)}
	if len(size) > 0 {
		o.order = make([]T, 0, size[0])
	}
	return o
}

// Insert appends key to the set. It returns false, and leaves the set unchanged, if key was
// already present.
func (o *Ordered[T]) Insert(key T) bool {
	if o.seen.Has(key) {
		return false
	}
	o.seen.Insert(key)
	o.order = append(o.order, key)
	return true
}

// Has returns true if the set has the given key.
func (o *Ordered[T]) Has(key T) bool { return o.seen.Has(key) }

// Len returns the number of elements.
func (o *Ordered[T]) Len() int { return len(o.order) }

// Keys returns a copy of the elements in insertion order.
func (o *Ordered[T]) Keys() []T { return slices.Clone(o.order) }

// Set returns a copy of the elements as an unordered Set.
func (o *Ordered[T]) Set() Set[T] { return maps.Clone(o.seen) }
