// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
engine.go - the recursive traversal shared by both directions

Serialize and deserialize walk the same way: collect the applicable codecs for
the node, run them in selection order until one terminates, recurse into plain
containers that no codec claimed, then fire any mapAfter hooks registered at
this node. Depth is capped; nodes past the cap pass through untouched.
*/

package serdes

import (
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/datalith/apierr"
	"github.com/tomtom215/datalith/options"
)

// MaxDepth is the traversal recursion cap. Nodes at or past it are treated as
// leaves.
const MaxDepth = 250

// Mode selects the wire dialect.
type Mode int

const (
	// ModeCollection uses document-style tagged wire values.
	ModeCollection Mode = iota
	// ModeTable is schema-informed; column definitions drive element parsing.
	ModeTable
)

// Options configures one SerDes instance.
type Options struct {
	Keyspace string
	Source   string

	// Codecs run before the built-in defaults for their selector.
	Codecs []Codec

	// BigNumbers maps field paths to numeric decode policies. Keys are
	// dot-joined paths, "*" matches one segment, "" covers the whole record.
	BigNumbers map[string]options.BigNumbersPolicy
}

// SerDes is an immutable serializer/deserializer pair. Safe for concurrent
// use once constructed.
type SerDes struct {
	mode     Mode
	reg      *registry
	keyspace string
	source   string
	bignum   *bigNumResolver
}

// New builds a SerDes for the given mode. User codecs take precedence over
// the mode's defaults within each selector kind.
func New(mode Mode, opts Options) *SerDes {
	codecs := make([]Codec, 0, len(opts.Codecs)+8)
	codecs = append(codecs, opts.Codecs...)
	if mode == ModeCollection {
		codecs = append(codecs, collectionCodecs()...)
	} else {
		codecs = append(codecs, tableCodecs()...)
	}
	codecs = append(codecs, numericCodecs()...)
	return &SerDes{
		mode:     mode,
		reg:      buildRegistry(codecs),
		keyspace: opts.Keyspace,
		source:   opts.Source,
		bignum:   newBigNumResolver(opts.BigNumbers),
	}
}

// Context is the per-node view handed to codecs. Values returned by Path are
// only valid for the duration of the codec call.
type Context struct {
	serdes  *SerDes
	path    []string
	raw     map[string]any
	column  *ColumnType
	hooks   []MapAfterHook
	bigNums *bool
}

// Path is the field path from the root to this node. Sequence indices appear
// as decimal segments.
func (c *Context) Path() []string { return c.path }

// Keyspace is the owning keyspace name, when known.
func (c *Context) Keyspace() string { return c.serdes.keyspace }

// Source is the owning collection or table name, when known.
func (c *Context) Source() string { return c.serdes.source }

// RawResponse is the whole response envelope; deserialize direction only.
func (c *Context) RawResponse() map[string]any { return c.raw }

// Column is the schema column type at this node; table-mode deserialize only.
func (c *Context) Column() *ColumnType { return c.column }

// MapAfter registers a hook to run once this node's subtree has been fully
// processed. Hooks of codecs that never ran are never registered.
func (c *Context) MapAfter(h MapAfterHook) { c.hooks = append(c.hooks, h) }

// MarkBigNumbers flags the envelope as carrying arbitrary-precision numbers
// so the HTTP layer switches to a precision-preserving encoder.
func (c *Context) MarkBigNumbers() {
	if c.bigNums != nil {
		*c.bigNums = true
	}
}

func serErr(path []string, msg string) error {
	cp := make([]string, len(path))
	copy(cp, path)
	return &apierr.SerializationError{Path: cp, Message: msg}
}

// Serialize turns an in-memory record into the JSON-ready wire tree. The
// second return reports whether the record contained big numbers.
func (s *SerDes) Serialize(record any) (any, bool, error) {
	bigNums := false
	out, err := s.walk(walkSerialize, nil, record, nil, nil, 0, &bigNums)
	if err != nil {
		return nil, false, err
	}
	return out, bigNums, nil
}

// Deserialize rehydrates a wire tree into domain values. raw is the complete
// response envelope, available to codecs that need sibling context.
func (s *SerDes) Deserialize(wire any, raw map[string]any) (any, error) {
	return s.walk(walkDeserialize, nil, wire, raw, nil, 0, nil)
}

type walkDirection int

const (
	walkSerialize walkDirection = iota
	walkDeserialize
)

func (s *SerDes) walk(dir walkDirection, path []string, value any, raw map[string]any, column *ColumnType, depth int, bigNums *bool) (any, error) {
	if depth >= MaxDepth {
		return value, nil
	}

	ctx := &Context{serdes: s, path: path, raw: raw, column: column, bigNums: bigNums}

	var fns []Fn
	if dir == walkSerialize {
		fns = s.reg.serializeFns(path, value)
	} else {
		fns = s.reg.deserializeFns(path, s.typeTagOf(value, column))
	}

	recursed := false
	terminal := false
	var err error
codecLoop:
	for _, fn := range fns {
		res := fn(ctx, value)
		switch res.kind {
		case kindNevermind:
			continue
		case kindContinue:
			break codecLoop
		case kindDone:
			terminal = true
			break codecLoop
		case kindReplace:
			value = res.value
			terminal = true
			break codecLoop
		case kindRecurse:
			// Later codecs observe the post-recursion value.
			value, err = s.recurse(dir, path, res.value, raw, column, depth, bigNums)
			if err != nil {
				return nil, err
			}
			recursed = true
		case kindFail:
			return nil, serErr(path, res.value.(string))
		}
	}

	if !terminal && !recursed {
		value, err = s.recurse(dir, path, value, raw, column, depth, bigNums)
		if err != nil {
			return nil, err
		}
	}

	for _, h := range ctx.hooks {
		value = h(value)
	}
	return value, nil
}

// recurse descends into plain containers; scalars pass through. Map keys are
// visited in reverse sorted order, sequences in order.
func (s *SerDes) recurse(dir walkDirection, path []string, value any, raw map[string]any, column *ColumnType, depth int, bigNums *bool) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Sort(sort.Reverse(sort.StringSlice(keys)))
		out := make(map[string]any, len(v))
		for _, k := range keys {
			child, err := s.walk(dir, append(path, k), v[k], raw, s.childColumn(column, k), depth+1, bigNums)
			if err != nil {
				return nil, err
			}
			out[k] = child
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, el := range v {
			child, err := s.walk(dir, append(path, strconv.Itoa(i)), el, raw, s.elementColumn(column), depth+1, bigNums)
			if err != nil {
				return nil, err
			}
			out[i] = child
		}
		return out, nil
	default:
		if dir == walkDeserialize {
			if n, ok := value.(json.Number); ok {
				converted, err := s.bignum.convert(path, n)
				if err != nil {
					return nil, serErr(path, err.Error())
				}
				return converted, nil
			}
		}
		return value, nil
	}
}

// typeTagOf picks the deserialize dispatch tag. Table mode trusts the schema;
// collection mode recognizes single-key "$"-tagged objects.
func (s *SerDes) typeTagOf(value any, column *ColumnType) string {
	if s.mode == ModeTable && column != nil {
		return column.Name
	}
	if m, ok := value.(map[string]any); ok && len(m) == 1 {
		for k := range m {
			if strings.HasPrefix(k, "$") {
				return k
			}
		}
	}
	return ""
}

// childColumn resolves the schema type of a map entry: the value type for
// map columns, nil when the node is not schema-tracked.
func (s *SerDes) childColumn(column *ColumnType, key string) *ColumnType {
	if s.mode != ModeTable || column == nil {
		return nil
	}
	if column.Name == "map" {
		return column.ValueType
	}
	return nil
}

// elementColumn resolves the schema type of a sequence element for list, set
// and vector columns.
func (s *SerDes) elementColumn(column *ColumnType) *ColumnType {
	if s.mode != ModeTable || column == nil {
		return nil
	}
	switch column.Name {
	case "list", "set":
		return column.ValueType
	case "vector":
		return &ColumnType{Name: "float"}
	}
	return nil
}
