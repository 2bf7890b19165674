// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package datatypes

import (
	"bytes"
	"encoding/base64"
	"fmt"
)

// Blob is an opaque byte sequence, stored on the wire as {"$binary": base64}.
type Blob struct {
	data []byte
}

// NewBlob constructs a Blob from raw bytes. The slice is copied.
func NewBlob(data []byte) Blob {
	cp := make([]byte, len(data))
	copy(cp, data)
	return Blob{data: cp}
}

// NewBlobFromBase64 constructs a Blob from a base64 string.
func NewBlobFromBase64(s string) (Blob, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Blob{}, fmt.Errorf("blob: invalid base64: %w", err)
	}
	return Blob{data: raw}, nil
}

// AsBase64 returns the standard base64 encoding of the payload.
func (b Blob) AsBase64() string {
	return base64.StdEncoding.EncodeToString(b.data)
}

// AsBytes returns a copy of the payload.
func (b Blob) AsBytes() []byte {
	cp := make([]byte, len(b.data))
	copy(cp, b.data)
	return cp
}

// Len returns the payload length in bytes.
func (b Blob) Len() int {
	return len(b.data)
}

// Equal reports byte-wise equality.
func (b Blob) Equal(other Blob) bool {
	return bytes.Equal(b.data, other.data)
}

func (b Blob) String() string {
	return fmt.Sprintf("Blob[%d bytes]", len(b.data))
}
