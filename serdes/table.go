// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
table.go - schema-informed table mode

Tables do not tag values on the wire; the server ships column definitions
(primaryKeySchema, projectionSchema) and the engine dispatches on those. Rows
returned as bare sequences are zipped against the primary-key schema before
traversal so codecs see a keyed record.
*/

package serdes

import (
	"bytes"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/datalith/apierr"
	"github.com/tomtom215/datalith/datatypes"
)

// ColumnType is one node of a server column definition. Parameterized types
// carry their element definitions; vectors carry a dimension.
type ColumnType struct {
	Name      string
	KeyType   *ColumnType
	ValueType *ColumnType
	Dimension int
}

// ColumnDef is a named column in declaration order.
type ColumnDef struct {
	Column string
	Type   ColumnType
}

// ParseColumnType converts one raw column definition object.
func ParseColumnType(raw map[string]any) (ColumnType, error) {
	name, _ := raw["type"].(string)
	if name == "" {
		return ColumnType{}, fmt.Errorf("column definition missing type")
	}
	ct := ColumnType{Name: name}
	if dim, ok := asInt64(raw["dimension"]); ok {
		ct.Dimension = int(dim)
	}
	for field, dst := range map[string]**ColumnType{"keyType": &ct.KeyType, "valueType": &ct.ValueType} {
		sub, ok := raw[field]
		if !ok {
			continue
		}
		switch s := sub.(type) {
		case string:
			*dst = &ColumnType{Name: s}
		case map[string]any:
			parsed, err := ParseColumnType(s)
			if err != nil {
				return ColumnType{}, fmt.Errorf("%s: %w", field, err)
			}
			*dst = &parsed
		default:
			return ColumnType{}, fmt.Errorf("%s has unsupported shape", field)
		}
	}
	return ct, nil
}

// ParseSchema converts an unordered schema object, e.g. a projectionSchema
// where column order is irrelevant.
func ParseSchema(raw map[string]any) (map[string]ColumnType, error) {
	out := make(map[string]ColumnType, len(raw))
	for col, def := range raw {
		m, ok := def.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("column %q: definition is not an object", col)
		}
		ct, err := ParseColumnType(m)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		out[col] = ct
	}
	return out, nil
}

// ParseSchemaOrdered parses a schema object from raw JSON preserving the key
// order the server sent. Primary-key schemas need this: inserted-id rows come
// back as bare sequences zipped positionally against it.
func ParseSchemaOrdered(data []byte) ([]ColumnDef, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	if tok != json.Delim('{') {
		return nil, fmt.Errorf("schema: expected object, got %v", tok)
	}
	var out []ColumnDef
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
		col, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("schema: non-string key %v", keyTok)
		}
		var def map[string]any
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("schema column %q: %w", col, err)
		}
		ct, err := ParseColumnType(def)
		if err != nil {
			return nil, fmt.Errorf("schema column %q: %w", col, err)
		}
		out = append(out, ColumnDef{Column: col, Type: ct})
	}
	return out, nil
}

// ZipRow keys a bare row sequence by the ordered schema.
func ZipRow(row []any, schema []ColumnDef) (map[string]any, error) {
	if len(row) != len(schema) {
		return nil, &apierr.SerializationError{
			Message: fmt.Sprintf("row has %d values but schema has %d columns", len(row), len(schema)),
		}
	}
	out := make(map[string]any, len(row))
	for i, def := range schema {
		out[def.Column] = row[i]
	}
	return out, nil
}

// DeserializeRow zips a bare row against the ordered schema and rehydrates it.
func (s *SerDes) DeserializeRow(row []any, schema []ColumnDef, raw map[string]any) (map[string]any, error) {
	keyed, err := ZipRow(row, schema)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(keyed))
	for _, def := range schema {
		col := def.Type
		v, werr := s.walk(walkDeserialize, []string{def.Column}, keyed[def.Column], raw, &col, 1, nil)
		if werr != nil {
			return nil, werr
		}
		out[def.Column] = v
	}
	return out, nil
}

// DeserializeDocument rehydrates a keyed document using an unordered schema,
// e.g. find results with a projectionSchema.
func (s *SerDes) DeserializeDocument(doc map[string]any, schema map[string]ColumnType, raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(doc))
	for col, val := range doc {
		var column *ColumnType
		if ct, ok := schema[col]; ok {
			c := ct
			column = &c
		}
		v, err := s.walk(walkDeserialize, []string{col}, val, raw, column, 1, nil)
		if err != nil {
			return nil, err
		}
		out[col] = v
	}
	return out, nil
}

func tableCodecs() []Codec {
	codecs := classCodecs()
	codecs = append(codecs,
		ForType("uuid", Impl{Deserialize: desUUIDColumn}),
		ForType("timeuuid", Impl{Deserialize: desUUIDColumn}),
		ForType("timestamp", Impl{Deserialize: func(_ *Context, v any) CodecResult {
			switch t := v.(type) {
			case map[string]any:
				ms, ok := asInt64(t[TagDate])
				if !ok {
					return Fail("timestamp column requires epoch milliseconds")
				}
				return Replace(datatypes.TimestampFromUnixMilli(ms))
			case string:
				ts, err := datatypes.ParseTimestamp(t)
				if err != nil {
					return Fail(fmt.Sprintf("invalid timestamp %q: %v", t, err))
				}
				return Replace(ts)
			}
			return Fail("timestamp column has unsupported wire shape")
		}}),
		ForType("date", Impl{Deserialize: func(_ *Context, v any) CodecResult {
			switch t := v.(type) {
			case map[string]any:
				ms, ok := asInt64(t[TagDate])
				if !ok {
					return Fail("date column requires epoch milliseconds")
				}
				return Replace(datatypes.DateOf(time.UnixMilli(ms).UTC()))
			case string:
				d, err := datatypes.ParseDate(t)
				if err != nil {
					return Fail(fmt.Sprintf("invalid date %q: %v", t, err))
				}
				return Replace(d)
			}
			return Fail("date column has unsupported wire shape")
		}}),
		ForType("time", Impl{Deserialize: func(_ *Context, v any) CodecResult {
			s, ok := v.(string)
			if !ok {
				return Fail("time column requires a string")
			}
			t, err := datatypes.ParseTime(s)
			if err != nil {
				return Fail(fmt.Sprintf("invalid time %q: %v", s, err))
			}
			return Replace(t)
		}}),
		ForType("duration", Impl{Deserialize: func(_ *Context, v any) CodecResult {
			s, ok := v.(string)
			if !ok {
				return Fail("duration column requires a string")
			}
			d, err := datatypes.ParseDuration(s)
			if err != nil {
				return Fail(fmt.Sprintf("invalid duration %q: %v", s, err))
			}
			return Replace(d)
		}}),
		ForType("inet", Impl{Deserialize: func(_ *Context, v any) CodecResult {
			s, ok := v.(string)
			if !ok {
				return Fail("inet column requires a string")
			}
			a, err := datatypes.ParseInetAddress(s)
			if err != nil {
				return Fail(fmt.Sprintf("invalid inet %q: %v", s, err))
			}
			return Replace(a)
		}}),
		ForType("blob", Impl{Deserialize: func(_ *Context, v any) CodecResult {
			var s string
			switch t := v.(type) {
			case map[string]any:
				str, ok := t[TagBinary].(string)
				if !ok {
					return Fail("blob column requires a $binary string")
				}
				s = str
			case string:
				s = t
			default:
				return Fail("blob column has unsupported wire shape")
			}
			b, err := datatypes.NewBlobFromBase64(s)
			if err != nil {
				return Fail(fmt.Sprintf("invalid blob: %v", err))
			}
			return Replace(b)
		}}),
		ForType("vector", Impl{Deserialize: func(_ *Context, v any) CodecResult {
			if m, ok := v.(map[string]any); ok {
				v = m[TagVector]
			}
			vec, err := decodeVector(v)
			if err != nil {
				return Fail(err.Error())
			}
			return Replace(vec)
		}}),
		ForType("varint", Impl{Deserialize: desBigNumberColumn}),
		ForType("decimal", Impl{Deserialize: desBigNumberColumn}),
		ForType("bigint", Impl{Deserialize: func(_ *Context, v any) CodecResult {
			n, ok := asInt64(v)
			if !ok {
				return Fail("bigint column requires an integral number")
			}
			return Replace(n)
		}}),
	)
	return codecs
}

func desUUIDColumn(_ *Context, v any) CodecResult {
	var s string
	switch t := v.(type) {
	case map[string]any:
		str, ok := t[TagUUID].(string)
		if !ok {
			return Fail("uuid column requires a $uuid string")
		}
		s = str
	case string:
		s = t
	default:
		return Fail("uuid column has unsupported wire shape")
	}
	id, err := datatypes.ParseUUID(s)
	if err != nil {
		return Fail(fmt.Sprintf("invalid uuid %q: %v", s, err))
	}
	return Replace(id)
}

func desBigNumberColumn(_ *Context, v any) CodecResult {
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = t
	case float64:
		return Replace(datatypes.BigNumberFromFloat(t))
	default:
		return Fail("numeric column has unsupported wire shape")
	}
	n, err := datatypes.ParseBigNumber(s)
	if err != nil {
		return Fail(fmt.Sprintf("invalid numeric value %q: %v", s, err))
	}
	return Replace(n)
}
