// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
codec.go - codec declarations and their selectors

A Codec pairs a selector (name, path, wire type tag, runtime type, or guard
predicate) with serialize/deserialize functions. Declarations are plain values;
the registry partitions them by direction at construction time.
*/

package serdes

import "reflect"

// Fn is one direction of a codec. It inspects the value at the current node
// and returns a CodecResult; ctx exposes the path, the raw response (on
// deserialize), the schema column (table mode), and MapAfter registration.
type Fn func(ctx *Context, value any) CodecResult

// Impl carries both directions. A nil direction means the codec does not
// participate in that direction.
type Impl struct {
	Serialize   Fn
	Deserialize Fn
}

type selectorKind int

const (
	selName selectorKind = iota
	selPath
	selType
	selClass
	selGuard
)

// Codec is one declaration handed to New. Use the For* constructors.
type Codec struct {
	kind  selectorKind
	name  string       // selName, selType
	path  []string     // selPath; "*" matches any single segment
	class reflect.Type // selClass
	guard func(any) bool
	impl  Impl
}

// ForName selects by the last path segment (field name).
func ForName(name string, impl Impl) Codec {
	return Codec{kind: selName, name: name, impl: impl}
}

// ForPath selects by exact field path. "*" in a segment matches any single
// segment, including numeric sequence indices. An empty path matches the root.
func ForPath(path []string, impl Impl) Codec {
	cp := make([]string, len(path))
	copy(cp, path)
	return Codec{kind: selPath, path: cp, impl: impl}
}

// ForType selects by wire type tag on deserialization, e.g. "$uuid" in
// collection mode or a schema column type like "timestamp" in table mode.
func ForType(typeTag string, impl Impl) Codec {
	return Codec{kind: selType, name: typeTag, impl: impl}
}

// ForClass selects by the value's runtime type on serialization.
func ForClass(prototype any, impl Impl) Codec {
	return Codec{kind: selClass, class: reflect.TypeOf(prototype), impl: impl}
}

// ForClassOf is the generic form of ForClass.
func ForClassOf[T any](impl Impl) Codec {
	return Codec{kind: selClass, class: reflect.TypeOf((*T)(nil)).Elem(), impl: impl}
}

// ForGuard selects on serialization by an arbitrary predicate; first matching
// guard wins. Guards are checked after class dispatch.
func ForGuard(guard func(value any) bool, impl Impl) Codec {
	return Codec{kind: selGuard, guard: guard, impl: impl}
}

// pathMatches reports whether pattern matches path segment-by-segment with
// single-segment "*" wildcards. Lengths are pre-matched by the registry index.
func pathMatches(pattern, path []string) bool {
	for i, seg := range pattern {
		if seg != "*" && seg != path[i] {
			return false
		}
	}
	return true
}
