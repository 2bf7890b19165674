// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
Package options implements the layered configuration algebra.

Option records merge across four scopes, weakest first: client, database,
collection/table, per-call (process-wide defaults loaded by internal/config
sit below the client layer). Every record type has a Monoid whose Concat is
associative with an identity element, so layering is order-insensitive in
grouping and a missing layer is exactly the identity:

	Concat(Empty, x) == x == Concat(x, Empty)
	Concat(Concat(a, b), c) == Concat(a, Concat(b, c))

Field-level combinators build record monoids: Rightmost (last set value
wins), Appending (left-to-right accumulation, used for header providers),
Prepending (right-to-left accumulation, used for logging layers so inner
scopes take effect first).

Parsing happens once at the boundary: user-supplied records are validated
(go-playground/validator) and normalized into immutable resolved forms;
failures carry the offending field path in a ConfigurationError.
*/
package options
