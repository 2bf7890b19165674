// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package datatypes

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// Vector is a fixed-length sequence of 32-bit floats used for vector search.
// The dimension is fixed at construction and equality is component-wise.
//
// The zero value is a dimension-0 vector.
type Vector struct {
	comps []float32
}

// NewVector constructs a Vector from 32-bit float components.
// The slice is copied; later mutation of the argument does not affect the vector.
func NewVector(comps []float32) Vector {
	cp := make([]float32, len(comps))
	copy(cp, comps)
	return Vector{comps: cp}
}

// NewVectorFromFloat64s constructs a Vector from 64-bit floats, narrowing
// each component to float32.
func NewVectorFromFloat64s(comps []float64) Vector {
	cp := make([]float32, len(comps))
	for i, c := range comps {
		cp[i] = float32(c)
	}
	return Vector{comps: cp}
}

// NewVectorFromBase64 constructs a Vector from base64-encoded raw bytes:
// each component is 4 bytes, big-endian IEEE 754.
func NewVectorFromBase64(s string) (Vector, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Vector{}, fmt.Errorf("vector: invalid base64: %w", err)
	}
	if len(raw)%4 != 0 {
		return Vector{}, fmt.Errorf("vector: raw byte length %d is not a multiple of 4", len(raw))
	}
	cp := make([]float32, len(raw)/4)
	for i := range cp {
		cp[i] = math.Float32frombits(binary.BigEndian.Uint32(raw[i*4:]))
	}
	return Vector{comps: cp}, nil
}

// Dimension returns the number of components.
func (v Vector) Dimension() int {
	return len(v.comps)
}

// Components returns a copy of the component slice.
func (v Vector) Components() []float32 {
	cp := make([]float32, len(v.comps))
	copy(cp, v.comps)
	return cp
}

// AsBase64 returns the components as base64-encoded big-endian IEEE 754 bytes,
// the compact wire form the Data API accepts for $binary vectors.
func (v Vector) AsBase64() string {
	raw := make([]byte, len(v.comps)*4)
	for i, c := range v.comps {
		binary.BigEndian.PutUint32(raw[i*4:], math.Float32bits(c))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// AsFloat64s returns the components widened to float64, the form used when
// the vector is sent as a plain JSON array.
func (v Vector) AsFloat64s() []float64 {
	out := make([]float64, len(v.comps))
	for i, c := range v.comps {
		out[i] = float64(c)
	}
	return out
}

// Equal reports component-wise equality. NaN components are never equal.
func (v Vector) Equal(other Vector) bool {
	if len(v.comps) != len(other.comps) {
		return false
	}
	for i := range v.comps {
		if v.comps[i] != other.comps[i] {
			return false
		}
	}
	return true
}

// String returns a short human-readable form, eliding long vectors.
func (v Vector) String() string {
	if len(v.comps) <= 4 {
		return fmt.Sprintf("Vector%v", v.comps)
	}
	return fmt.Sprintf("Vector[dim=%d]", len(v.comps))
}
