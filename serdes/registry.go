// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package serdes

import "reflect"

type pathEntry struct {
	pattern []string
	fn      Fn
}

type classEntry struct {
	class reflect.Type
	fn    Fn
}

type guardEntry struct {
	guard func(any) bool
	fn    Fn
}

// registry is the compiled codec table, one side per direction. Paths are
// indexed by length so lookup at a node of depth d touches only candidates of
// length d. Immutable after build.
type registry struct {
	serNames   map[string][]Fn
	serPaths   map[int][]pathEntry
	serClasses []classEntry
	serGuards  []guardEntry

	desNames map[string][]Fn
	desPaths map[int][]pathEntry
	desTypes map[string][]Fn
}

func buildRegistry(codecs []Codec) *registry {
	r := &registry{
		serNames: map[string][]Fn{},
		serPaths: map[int][]pathEntry{},
		desNames: map[string][]Fn{},
		desPaths: map[int][]pathEntry{},
		desTypes: map[string][]Fn{},
	}
	for _, c := range codecs {
		switch c.kind {
		case selName:
			if c.impl.Serialize != nil {
				r.serNames[c.name] = append(r.serNames[c.name], c.impl.Serialize)
			}
			if c.impl.Deserialize != nil {
				r.desNames[c.name] = append(r.desNames[c.name], c.impl.Deserialize)
			}
		case selPath:
			n := len(c.path)
			if c.impl.Serialize != nil {
				r.serPaths[n] = append(r.serPaths[n], pathEntry{pattern: c.path, fn: c.impl.Serialize})
			}
			if c.impl.Deserialize != nil {
				r.desPaths[n] = append(r.desPaths[n], pathEntry{pattern: c.path, fn: c.impl.Deserialize})
			}
		case selType:
			if c.impl.Deserialize != nil {
				r.desTypes[c.name] = append(r.desTypes[c.name], c.impl.Deserialize)
			}
		case selClass:
			if c.impl.Serialize != nil {
				r.serClasses = append(r.serClasses, classEntry{class: c.class, fn: c.impl.Serialize})
			}
		case selGuard:
			if c.impl.Serialize != nil {
				r.serGuards = append(r.serGuards, guardEntry{guard: c.guard, fn: c.impl.Serialize})
			}
		}
	}
	return r
}

// serializeFns collects applicable serialize codecs for one node in selection
// order: exact path, field name, runtime class, then guards.
func (r *registry) serializeFns(path []string, value any) []Fn {
	var fns []Fn
	for _, e := range r.serPaths[len(path)] {
		if pathMatches(e.pattern, path) {
			fns = append(fns, e.fn)
		}
	}
	if n := len(path); n > 0 {
		fns = append(fns, r.serNames[path[n-1]]...)
	}
	if value != nil {
		vt := reflect.TypeOf(value)
		for _, e := range r.serClasses {
			if vt == e.class {
				fns = append(fns, e.fn)
			}
		}
	}
	for _, e := range r.serGuards {
		if e.guard(value) {
			fns = append(fns, e.fn)
		}
	}
	return fns
}

// deserializeFns collects applicable deserialize codecs for one node:
// exact path, field name, then wire/schema type tag.
func (r *registry) deserializeFns(path []string, typeTag string) []Fn {
	var fns []Fn
	for _, e := range r.desPaths[len(path)] {
		if pathMatches(e.pattern, path) {
			fns = append(fns, e.fn)
		}
	}
	if n := len(path); n > 0 {
		fns = append(fns, r.desNames[path[n-1]]...)
	}
	if typeTag != "" {
		fns = append(fns, r.desTypes[typeTag]...)
	}
	return fns
}
