// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
Package datatypes provides the value types that the Data API represents with
tagged wire forms: vectors, binary blobs, UUIDs, object IDs, calendar dates,
wall-clock times, timestamps, durations, inet addresses, and
arbitrary-precision numbers.

Each type validates on construction and compares by value. The serdes package
maps these types to and from their wire encodings ($vector, $binary, $uuid,
$objectId, $date and friends for collections; schema-driven forms for tables).

# Construction

All types are immutable after construction:

	v := datatypes.NewVector([]float32{0.1, 0.2, 0.3})
	id, err := datatypes.ParseUUID("018e5f4c-...")
	d, err := datatypes.ParseDate("2000-01-01")

Invalid inputs are rejected at construction, never silently coerced.
*/
package datatypes
