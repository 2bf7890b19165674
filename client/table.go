// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
table.go - schema-typed row operations

Tables speak the same command envelope as collections but their wire values
are schema-informed: inserted primary keys come back as positional rows
zipped against status.primaryKeySchema (key order recovered from the raw
body, since decoding through a Go map loses it), and found rows deserialize
against status.projectionSchema.
*/

package client

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/datalith/apierr"
	"github.com/tomtom215/datalith/events"
	"github.com/tomtom215/datalith/internal/httpcore"
	"github.com/tomtom215/datalith/serdes"
)

// Table is a handle on one schema-typed table. Safe for concurrent use.
type Table struct {
	handle *sourceHandle
	serdes *serdes.SerDes
}

// Name is the table name.
func (t *Table) Name() string { return t.handle.name }

// Keyspace is the keyspace this handle addresses, captured at creation.
func (t *Table) Keyspace() string { return t.handle.keyspace }

// On registers an event listener at the table node.
func (t *Table) On(name events.Name, fn events.Listener) func() {
	return t.handle.emitter.On(name, fn)
}

func (t *Table) encode(v any) (any, error) {
	wire, _, err := t.serdes.Serialize(v)
	return wire, err
}

// decode rehydrates one found row against the response's projectionSchema.
func (t *Table) decode(resp *httpcore.RawResponse, doc any) (Document, error) {
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, &apierr.SerializationError{Message: fmt.Sprintf("row decoded to %T, not an object", doc)}
	}
	rawSchema, ok := resp.Status["projectionSchema"].(map[string]any)
	if !ok {
		// Schema-less response; fall back to the plain traversal.
		out, err := t.serdes.Deserialize(m, resp.Raw)
		if err != nil {
			return nil, err
		}
		return out.(map[string]any), nil
	}
	schema, err := serdes.ParseSchema(rawSchema)
	if err != nil {
		return nil, err
	}
	return t.serdes.DeserializeDocument(m, schema, resp.Raw)
}

func (t *Table) run(ctx context.Context, command string, args Document, idempotent bool, budget *time.Duration) (*httpcore.RawResponse, error) {
	b := t.handle.timeouts.GeneralMethod
	if budget != nil {
		b = *budget
	}
	tm := httpcore.NewMultiPhase(apierr.TimeoutGeneral, b, t.handle.timeouts.Request)
	return t.handle.db.exec.Execute(ctx, &httpcore.ExecuteOptions{
		Keyspace:     t.handle.keyspace,
		Source:       t.handle.name,
		Command:      command,
		Args:         args,
		Idempotent:   idempotent,
		ExtraHeaders: t.handle.headers,
		Timeout:      tm,
	})
}

// primaryKeySchema recovers the ordered key schema from the raw body.
// status.insertedIds rows are positional in that key order, which the decoded
// map cannot preserve.
func primaryKeySchema(resp *httpcore.RawResponse) ([]serdes.ColumnDef, error) {
	var envelope struct {
		Status struct {
			PrimaryKeySchema json.RawMessage `json:"primaryKeySchema"`
		} `json:"status"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, &apierr.SerializationError{Message: "cannot re-read primaryKeySchema", Err: err}
	}
	if len(envelope.Status.PrimaryKeySchema) == 0 {
		return nil, nil
	}
	return serdes.ParseSchemaOrdered(envelope.Status.PrimaryKeySchema)
}

// TableInsertResult reports the primary keys of inserted rows, in input order.
type TableInsertResult struct {
	PrimaryKeys []Document
}

// InsertOne inserts one row and returns its primary key.
func (t *Table) InsertOne(ctx context.Context, row Document) (*TableInsertResult, error) {
	wire, err := t.encode(row)
	if err != nil {
		return nil, err
	}
	resp, err := t.run(ctx, "insertOne", Document{"document": wire}, false, nil)
	if err != nil {
		return nil, err
	}
	return t.insertResult(resp)
}

// InsertMany inserts rows sequentially in one ordered request.
func (t *Table) InsertMany(ctx context.Context, rows []Document, ordered bool) (*TableInsertResult, error) {
	wire := make([]any, 0, len(rows))
	for _, row := range rows {
		w, err := t.encode(row)
		if err != nil {
			return nil, err
		}
		wire = append(wire, w)
	}
	args := Document{
		"documents": wire,
		"options":   Document{"ordered": ordered},
	}
	resp, err := t.run(ctx, "insertMany", args, false, nil)
	if err != nil {
		return nil, err
	}
	return t.insertResult(resp)
}

func (t *Table) insertResult(resp *httpcore.RawResponse) (*TableInsertResult, error) {
	schema, err := primaryKeySchema(resp)
	if err != nil {
		return nil, err
	}
	out := &TableInsertResult{}
	for _, raw := range anySlice(resp.Status["insertedIds"]) {
		rowVals, ok := raw.([]any)
		if !ok || schema == nil {
			continue
		}
		pk, err := t.serdes.DeserializeRow(rowVals, schema, resp.Raw)
		if err != nil {
			return nil, err
		}
		out.PrimaryKeys = append(out.PrimaryKeys, pk)
	}
	return out, nil
}

// FindOne returns the first matching row, deserialized against the
// projection schema.
func (t *Table) FindOne(ctx context.Context, filter Document, opts *FindOneOptions) (Document, bool, error) {
	if opts == nil {
		opts = &FindOneOptions{}
	}
	wire, err := t.encode(orEmpty(filter))
	if err != nil {
		return nil, false, err
	}
	args := Document{"filter": wire}
	if opts.Projection != nil {
		args["projection"] = opts.Projection
	}
	if opts.Sort != nil {
		if args["sort"], err = t.encode(opts.Sort); err != nil {
			return nil, false, err
		}
	}

	resp, err := t.run(ctx, "findOne", args, true, opts.Timeout)
	if err != nil {
		return nil, false, err
	}
	raw, ok := resp.Data["document"].(map[string]any)
	if !ok {
		return nil, false, nil
	}
	row, err := t.decode(resp, raw)
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// Find returns an idle cursor over every matching row.
func (t *Table) Find(filter Document) *FindCursor[Document] {
	return newFindCursor(&cursorSource{
		exec:       t.handle.db.exec,
		keyspace:   t.handle.keyspace,
		name:       t.handle.name,
		sourceType: "table",
		timeouts:   t.handle.timeouts,
		headers:    t.handle.headers,
		encode:     t.encode,
		decode:     t.decode,
	}, filter)
}

// UpdateOne applies update operators to the row named by the primary-key
// filter.
func (t *Table) UpdateOne(ctx context.Context, filter, update Document) error {
	wire, err := t.encode(orEmpty(filter))
	if err != nil {
		return err
	}
	upd, err := t.encode(update)
	if err != nil {
		return err
	}
	_, err = t.run(ctx, "updateOne", Document{"filter": wire, "update": upd}, false, nil)
	return err
}

// DeleteOne removes the row named by the primary-key filter.
func (t *Table) DeleteOne(ctx context.Context, filter Document) error {
	wire, err := t.encode(orEmpty(filter))
	if err != nil {
		return err
	}
	_, err = t.run(ctx, "deleteOne", Document{"filter": wire}, false, nil)
	return err
}

// DeleteMany removes every row matching the filter.
func (t *Table) DeleteMany(ctx context.Context, filter Document) error {
	wire, err := t.encode(orEmpty(filter))
	if err != nil {
		return err
	}
	_, err = t.run(ctx, "deleteMany", Document{"filter": wire}, false, nil)
	return err
}

// IndexOptions tunes index creation.
type IndexOptions struct {
	IfNotExists bool
	// Options is passed through as the index options object
	// (caseSensitive, normalize, ascii for text columns).
	Options Document
}

// CreateIndex creates a secondary index on one column.
func (t *Table) CreateIndex(ctx context.Context, name, column string, opts *IndexOptions) error {
	if opts == nil {
		opts = &IndexOptions{}
	}
	definition := Document{"column": column}
	if opts.Options != nil {
		definition["options"] = opts.Options
	}
	args := Document{"name": name, "definition": definition}
	if opts.IfNotExists {
		args["options"] = Document{"ifNotExists": true}
	}
	return t.schemaRun(ctx, "createIndex", args)
}

// VectorIndexOptions tunes vector index creation.
type VectorIndexOptions struct {
	IfNotExists bool
	// Metric is the similarity function: cosine, euclidean, or dot_product.
	Metric string
	// SourceModel hints the embedding model for index tuning.
	SourceModel string
}

// CreateVectorIndex creates an approximate-nearest-neighbor index on a
// vector column.
func (t *Table) CreateVectorIndex(ctx context.Context, name, column string, opts *VectorIndexOptions) error {
	if opts == nil {
		opts = &VectorIndexOptions{}
	}
	idxOpts := Document{}
	if opts.Metric != "" {
		idxOpts["metric"] = opts.Metric
	}
	if opts.SourceModel != "" {
		idxOpts["sourceModel"] = opts.SourceModel
	}
	definition := Document{"column": column}
	if len(idxOpts) > 0 {
		definition["options"] = idxOpts
	}
	args := Document{"name": name, "definition": definition}
	if opts.IfNotExists {
		args["options"] = Document{"ifNotExists": true}
	}
	return t.schemaRun(ctx, "createVectorIndex", args)
}

// ListIndexes returns the names of every index on this table.
func (t *Table) ListIndexes(ctx context.Context) ([]string, error) {
	resp, err := t.run(ctx, "listIndexes", Document{"options": Document{"explain": false}}, true, nil)
	if err != nil {
		return nil, err
	}
	return stringSlice(resp.Status["indexes"]), nil
}

// Drop removes the whole table.
func (t *Table) Drop(ctx context.Context) error {
	return t.handle.db.DropTable(ctx, t.handle.name)
}

// schemaRun executes a table schema operation under the table-admin budget.
func (t *Table) schemaRun(ctx context.Context, command string, args Document) error {
	tm := httpcore.NewMultiPhase(apierr.TimeoutTableAdmin, t.handle.timeouts.TableAdmin, t.handle.timeouts.Request)
	_, err := t.handle.db.exec.Execute(ctx, &httpcore.ExecuteOptions{
		Keyspace:     t.handle.keyspace,
		Source:       t.handle.name,
		Command:      command,
		Args:         args,
		ExtraHeaders: t.handle.headers,
		Timeout:      tm,
	})
	return err
}

func orEmpty(d Document) Document {
	if d == nil {
		return Document{}
	}
	return d
}
