// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package datatypes

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

// ObjectID is a 12-byte timestamped identifier compatible with the Data API's
// {"$objectId": "..."} wire form: 4 bytes of big-endian unix seconds, 5 bytes
// of per-process randomness, and a 3-byte monotonically increasing counter.
type ObjectID struct {
	b [12]byte
}

var (
	oidProcess [5]byte
	oidCounter atomic.Uint32
)

func init() {
	if _, err := rand.Read(oidProcess[:]); err != nil {
		panic(fmt.Sprintf("datatypes: cannot seed ObjectID process bytes: %v", err))
	}
	var seed [4]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic(fmt.Sprintf("datatypes: cannot seed ObjectID counter: %v", err))
	}
	oidCounter.Store(binary.BigEndian.Uint32(seed[:]))
}

// NewObjectID generates an ObjectID stamped with the current time.
func NewObjectID() ObjectID {
	return NewObjectIDAt(time.Now())
}

// NewObjectIDAt generates an ObjectID stamped with the given time.
func NewObjectIDAt(t time.Time) ObjectID {
	var id ObjectID
	binary.BigEndian.PutUint32(id.b[0:4], uint32(t.Unix()))
	copy(id.b[4:9], oidProcess[:])
	n := oidCounter.Add(1)
	id.b[9] = byte(n >> 16)
	id.b[10] = byte(n >> 8)
	id.b[11] = byte(n)
	return id
}

// ParseObjectID parses a 24-character hex string.
func ParseObjectID(s string) (ObjectID, error) {
	if len(s) != 24 {
		return ObjectID{}, fmt.Errorf("objectId: expected 24 hex characters, got %d", len(s))
	}
	var id ObjectID
	if _, err := hex.Decode(id.b[:], []byte(s)); err != nil {
		return ObjectID{}, fmt.Errorf("objectId: %w", err)
	}
	return id, nil
}

// Timestamp returns the creation time embedded in the first 4 bytes,
// truncated to seconds.
func (id ObjectID) Timestamp() time.Time {
	secs := binary.BigEndian.Uint32(id.b[0:4])
	return time.Unix(int64(secs), 0).UTC()
}

// Equal reports byte-wise equality.
func (id ObjectID) Equal(other ObjectID) bool {
	return id.b == other.b
}

// Bytes returns the raw 12 bytes.
func (id ObjectID) Bytes() [12]byte {
	return id.b
}

// String returns the 24-character lowercase hex form.
func (id ObjectID) String() string {
	return hex.EncodeToString(id.b[:])
}
