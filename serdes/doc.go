// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
Package serdes maps between in-memory records and the JSON wire form the Data
API speaks.

One recursive engine serves both directions and both table flavors. Collection
mode uses document-style wire tags ($date, $uuid, $objectId, $vector, $binary);
table mode is schema-informed, with the server-supplied column definitions
driving which parser applies at each nesting level.

Behavior is driven by a codec registry built once per instance from a list of
codec declarations. A codec is selected by field name, field path, wire type
tag, or runtime type, and decides per node whether to replace the value, keep
recursing, finish, or pass to the next codec in line. The registry is immutable
after construction and safe for concurrent use.

Traversal depth is capped at 250 levels; anything deeper is passed through as a
leaf rather than risking unbounded recursion on pathological inputs.
*/
package serdes
