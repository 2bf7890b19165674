// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
collection.go - document-style wire tags

Collections speak MongoDB-shaped tagged values: a scalar domain value becomes
a single-key object whose key names the type ($date, $uuid, $objectId,
$vector, $binary). Timestamps and calendar dates share the $date tag; in
collection mode an incoming $date always rehydrates as a Timestamp.
*/

package serdes

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/datalith/datatypes"
)

// Wire type tags recognized in collection mode.
const (
	TagDate     = "$date"
	TagUUID     = "$uuid"
	TagObjectID = "$objectId"
	TagVector   = "$vector"
	TagBinary   = "$binary"
)

// classCodecs serialize domain scalars to their tagged wire forms. Both modes
// share them; the deserialize side differs per mode.
func classCodecs() []Codec {
	return []Codec{
		ForClassOf[datatypes.Timestamp](Impl{Serialize: func(_ *Context, v any) CodecResult {
			return Replace(map[string]any{TagDate: v.(datatypes.Timestamp).UnixMilli()})
		}}),
		ForClassOf[datatypes.Date](Impl{Serialize: func(_ *Context, v any) CodecResult {
			d := v.(datatypes.Date)
			return Replace(map[string]any{TagDate: d.In(time.UTC).UnixMilli()})
		}}),
		ForClassOf[datatypes.UUID](Impl{Serialize: func(_ *Context, v any) CodecResult {
			return Replace(map[string]any{TagUUID: v.(datatypes.UUID).String()})
		}}),
		ForClassOf[datatypes.ObjectID](Impl{Serialize: func(_ *Context, v any) CodecResult {
			return Replace(map[string]any{TagObjectID: v.(datatypes.ObjectID).String()})
		}}),
		ForClassOf[datatypes.Vector](Impl{Serialize: func(_ *Context, v any) CodecResult {
			return Replace(map[string]any{TagVector: v.(datatypes.Vector).AsBase64()})
		}}),
		ForClassOf[datatypes.Blob](Impl{Serialize: func(_ *Context, v any) CodecResult {
			return Replace(map[string]any{TagBinary: v.(datatypes.Blob).AsBase64()})
		}}),
		ForClassOf[datatypes.Time](Impl{Serialize: func(_ *Context, v any) CodecResult {
			return Replace(v.(datatypes.Time).String())
		}}),
		ForClassOf[datatypes.Duration](Impl{Serialize: func(_ *Context, v any) CodecResult {
			return Replace(v.(datatypes.Duration).String())
		}}),
		ForClassOf[datatypes.InetAddress](Impl{Serialize: func(_ *Context, v any) CodecResult {
			return Replace(v.(datatypes.InetAddress).String())
		}}),
	}
}

func collectionCodecs() []Codec {
	codecs := classCodecs()
	codecs = append(codecs,
		ForType(TagDate, Impl{Deserialize: func(_ *Context, v any) CodecResult {
			ms, ok := taggedInt64(v, TagDate)
			if !ok {
				return Fail("$date requires an epoch-milliseconds number")
			}
			return Replace(datatypes.TimestampFromUnixMilli(ms))
		}}),
		ForType(TagUUID, Impl{Deserialize: func(_ *Context, v any) CodecResult {
			s, ok := taggedString(v, TagUUID)
			if !ok {
				return Fail("$uuid requires a string value")
			}
			id, err := datatypes.ParseUUID(s)
			if err != nil {
				return Fail(fmt.Sprintf("invalid $uuid %q: %v", s, err))
			}
			return Replace(id)
		}}),
		ForType(TagObjectID, Impl{Deserialize: func(_ *Context, v any) CodecResult {
			s, ok := taggedString(v, TagObjectID)
			if !ok {
				return Fail("$objectId requires a string value")
			}
			id, err := datatypes.ParseObjectID(s)
			if err != nil {
				return Fail(fmt.Sprintf("invalid $objectId %q: %v", s, err))
			}
			return Replace(id)
		}}),
		ForType(TagVector, Impl{Deserialize: func(_ *Context, v any) CodecResult {
			vec, err := decodeVector(v.(map[string]any)[TagVector])
			if err != nil {
				return Fail(err.Error())
			}
			return Replace(vec)
		}}),
		ForType(TagBinary, Impl{Deserialize: func(_ *Context, v any) CodecResult {
			s, ok := taggedString(v, TagBinary)
			if !ok {
				return Fail("$binary requires a base64 string")
			}
			b, err := datatypes.NewBlobFromBase64(s)
			if err != nil {
				return Fail(fmt.Sprintf("invalid $binary: %v", err))
			}
			return Replace(b)
		}}),
	)
	return codecs
}

func taggedString(v any, tag string) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := m[tag].(string)
	return s, ok
}

func taggedInt64(v any, tag string) (int64, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return 0, false
	}
	return asInt64(m[tag])
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		return int64(n), float64(int64(n)) == n
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

// decodeVector accepts the base64 packed form or a plain numeric sequence.
func decodeVector(v any) (datatypes.Vector, error) {
	switch vv := v.(type) {
	case string:
		return datatypes.NewVectorFromBase64(vv)
	case []any:
		comps := make([]float64, len(vv))
		for i, el := range vv {
			f, ok := asFloat64(el)
			if !ok {
				return datatypes.Vector{}, fmt.Errorf("vector component %d is not numeric", i)
			}
			comps[i] = f
		}
		return datatypes.NewVectorFromFloat64s(comps), nil
	}
	return datatypes.Vector{}, fmt.Errorf("vector requires a base64 string or numeric sequence")
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
