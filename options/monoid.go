// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package options

// Monoid merges layers of T. Concat must be associative and Empty must be its
// identity; the option tests assert both laws for every record type.
type Monoid[T any] struct {
	empty  func() T
	concat func(layers []T) T
}

// NewMonoid builds a Monoid from an identity constructor and a merge function.
func NewMonoid[T any](empty func() T, concat func(layers []T) T) Monoid[T] {
	return Monoid[T]{empty: empty, concat: concat}
}

// Empty returns the identity element.
func (m Monoid[T]) Empty() T {
	return m.empty()
}

// Concat merges layers left to right; weakest layer first.
func (m Monoid[T]) Concat(layers ...T) T {
	return m.concat(layers)
}

// Rightmost returns the last non-nil pointer, the merge rule for scalar
// option fields (a stronger scope overrides a weaker one).
func Rightmost[T any](layers ...*T) *T {
	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i] != nil {
			return layers[i]
		}
	}
	return nil
}

// Appending concatenates slices left to right.
func Appending[T any](layers ...[]T) []T {
	var out []T
	for _, layer := range layers {
		out = append(out, layer...)
	}
	return out
}

// Prepending concatenates slices right to left, so entries from stronger
// scopes come first. Logging layers merge this way: inner overrides are
// consulted before outer defaults.
func Prepending[T any](layers ...[]T) []T {
	var out []T
	for i := len(layers) - 1; i >= 0; i-- {
		out = append(out, layers[i]...)
	}
	return out
}

// Optional is the monoid of scalar fields: rightmost non-nil wins.
func Optional[T any]() Monoid[*T] {
	return NewMonoid(
		func() *T { return nil },
		func(layers []*T) *T { return Rightmost(layers...) },
	)
}

// Array is the monoid of accumulating fields: append in layer order.
func Array[T any]() Monoid[[]T] {
	return NewMonoid(
		func() []T { return nil },
		func(layers [][]T) []T { return Appending(layers...) },
	)
}

// PrependingArray is the monoid of accumulating fields merged right-to-left.
func PrependingArray[T any]() Monoid[[]T] {
	return NewMonoid(
		func() []T { return nil },
		func(layers [][]T) []T { return Prepending(layers...) },
	)
}
