// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package datatypes

import (
	"fmt"

	"github.com/google/uuid"
)

// UUID is a 128-bit identifier carried on the wire as {"$uuid": "..."}.
// Equality is case-insensitive on the hex form because parsing normalizes
// to the canonical 16-byte representation.
type UUID struct {
	u uuid.UUID
}

// NewUUIDv4 generates a random (version 4) UUID.
func NewUUIDv4() UUID {
	return UUID{u: uuid.New()}
}

// NewUUIDv7 generates a time-ordered (version 7) UUID.
func NewUUIDv7() (UUID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return UUID{}, fmt.Errorf("uuid: v7 generation failed: %w", err)
	}
	return UUID{u: u}, nil
}

// ParseUUID parses the canonical hex-and-dash form, accepting any case.
func ParseUUID(s string) (UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, fmt.Errorf("uuid: %w", err)
	}
	return UUID{u: u}, nil
}

// Version returns the UUID version number (4, 7, ...).
func (id UUID) Version() int {
	return int(id.u.Version())
}

// Equal reports equality of the underlying 128 bits.
func (id UUID) Equal(other UUID) bool {
	return id.u == other.u
}

// Bytes returns the 16-byte big-endian representation.
func (id UUID) Bytes() [16]byte {
	return id.u
}

// String returns the canonical lowercase hex-and-dash form.
func (id UUID) String() string {
	return id.u.String()
}
