// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
collection.go - document-container operations

Collections are schemaless JSON-document containers. Every payload crossing
the wire goes through the collection-mode serdes, so datatypes values
(UUID, Vector, Timestamp, ...) take their tagged wire forms in documents,
filters, sorts, and updates alike.
*/

package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/datalith/apierr"
	"github.com/tomtom215/datalith/events"
	"github.com/tomtom215/datalith/internal/httpcore"
	"github.com/tomtom215/datalith/serdes"
)

// defaultInsertManyChunk is the per-request document batch size.
const defaultInsertManyChunk = 50

// defaultInsertManyConcurrency bounds parallel unordered insert batches.
const defaultInsertManyConcurrency = 8

// Collection is a handle on one document collection. Safe for concurrent use.
type Collection struct {
	handle *sourceHandle
	serdes *serdes.SerDes
}

// Name is the collection name.
func (c *Collection) Name() string { return c.handle.name }

// Keyspace is the keyspace this handle addresses, captured at creation.
func (c *Collection) Keyspace() string { return c.handle.keyspace }

// On registers an event listener at the collection node.
func (c *Collection) On(name events.Name, fn events.Listener) func() {
	return c.handle.emitter.On(name, fn)
}

func (c *Collection) encode(v any) (any, error) {
	wire, _, err := c.serdes.Serialize(v)
	return wire, err
}

func (c *Collection) decode(resp *httpcore.RawResponse, doc any) (Document, error) {
	out, err := c.serdes.Deserialize(doc, resp.Raw)
	if err != nil {
		return nil, err
	}
	m, ok := out.(Document)
	if !ok {
		return nil, &apierr.SerializationError{Message: fmt.Sprintf("document decoded to %T, not an object", out)}
	}
	return m, nil
}

// run executes one command against this collection under the general budget.
func (c *Collection) run(ctx context.Context, command string, args Document, idempotent bool, budget *time.Duration) (*httpcore.RawResponse, error) {
	b := c.handle.timeouts.GeneralMethod
	if budget != nil {
		b = *budget
	}
	tm := httpcore.NewMultiPhase(apierr.TimeoutGeneral, b, c.handle.timeouts.Request)
	return c.handle.db.exec.Execute(ctx, &httpcore.ExecuteOptions{
		Keyspace:     c.handle.keyspace,
		Source:       c.handle.name,
		Command:      command,
		Args:         args,
		Idempotent:   idempotent,
		ExtraHeaders: c.handle.headers,
		Timeout:      tm,
	})
}

// InsertOneResult reports a single insert.
type InsertOneResult struct {
	InsertedID any
}

// InsertOne inserts one document and returns its _id (generated server-side
// when the document carries none).
func (c *Collection) InsertOne(ctx context.Context, doc Document) (*InsertOneResult, error) {
	wire, err := c.encode(doc)
	if err != nil {
		return nil, err
	}
	resp, err := c.run(ctx, "insertOne", Document{"document": wire}, false, nil)
	if err != nil {
		return nil, err
	}
	ids := anySlice(resp.Status["insertedIds"])
	if len(ids) == 0 {
		return &InsertOneResult{}, nil
	}
	id, err := c.serdes.Deserialize(ids[0], resp.Raw)
	if err != nil {
		return nil, err
	}
	return &InsertOneResult{InsertedID: id}, nil
}

// InsertManyOptions tunes a bulk insert.
type InsertManyOptions struct {
	// Ordered inserts chunks sequentially and stops at the first failure.
	// Unordered (default) runs chunks concurrently.
	Ordered bool
	// ChunkSize is the documents-per-request batch size (default 50).
	ChunkSize int
	// Concurrency bounds parallel unordered batches (default 8).
	Concurrency int
	// Timeout overrides the whole-call budget.
	Timeout *time.Duration
}

// InsertManyResult reports a bulk insert. On partial failure it accompanies
// the error with the IDs that did land.
type InsertManyResult struct {
	InsertedIDs []any
}

// InsertMany inserts documents in chunks. The ordered path preserves input
// order and stops at the first failing chunk; the unordered path runs chunks
// concurrently and reports IDs in completion order. Either way the returned
// result carries every ID the server acknowledged, even when err is non-nil.
func (c *Collection) InsertMany(ctx context.Context, docs []Document, opts *InsertManyOptions) (*InsertManyResult, error) {
	if opts == nil {
		opts = &InsertManyOptions{}
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultInsertManyChunk
	}

	chunks := make([][]any, 0, (len(docs)+chunkSize-1)/chunkSize)
	for start := 0; start < len(docs); start += chunkSize {
		end := min(start+chunkSize, len(docs))
		wire := make([]any, 0, end-start)
		for _, doc := range docs[start:end] {
			w, err := c.encode(doc)
			if err != nil {
				return nil, err
			}
			wire = append(wire, w)
		}
		chunks = append(chunks, wire)
	}

	result := &InsertManyResult{}
	if opts.Ordered {
		for _, chunk := range chunks {
			ids, err := c.insertChunk(ctx, chunk, true, opts.Timeout)
			result.InsertedIDs = append(result.InsertedIDs, ids...)
			if err != nil {
				return result, err
			}
		}
		return result, nil
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultInsertManyConcurrency
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			ids, err := c.insertChunk(gctx, chunk, false, opts.Timeout)
			mu.Lock()
			result.InsertedIDs = append(result.InsertedIDs, ids...)
			mu.Unlock()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

// insertChunk runs one insertMany request, returning acknowledged IDs even
// alongside an error.
func (c *Collection) insertChunk(ctx context.Context, wire []any, ordered bool, budget *time.Duration) ([]any, error) {
	args := Document{
		"documents": wire,
		"options":   Document{"ordered": ordered},
	}
	resp, err := c.run(ctx, "insertMany", args, false, budget)
	if err != nil {
		var respErr *apierr.ResponseError
		if errors.As(err, &respErr) {
			if partial, ok := respErr.PartialResult.(map[string]any); ok {
				ids, derr := c.decodeIDs(anySlice(partial["insertedIds"]), nil)
				if derr != nil {
					// The server error outranks a decode failure on the
					// salvaged IDs.
					return nil, err
				}
				return ids, err
			}
		}
		return nil, err
	}
	return c.decodeIDs(anySlice(resp.Status["insertedIds"]), resp.Raw)
}

// decodeIDs rehydrates acknowledged _ids from wire form, so InsertMany
// returns the same typed values InsertOne does.
func (c *Collection) decodeIDs(wire []any, raw map[string]any) ([]any, error) {
	if len(wire) == 0 {
		return nil, nil
	}
	out := make([]any, 0, len(wire))
	for _, id := range wire {
		v, err := c.serdes.Deserialize(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// FindOneOptions shapes a single-document lookup.
type FindOneOptions struct {
	Projection        Document
	Sort              Document
	IncludeSimilarity bool
	Timeout           *time.Duration
}

// FindOne returns the first matching document, reporting found=false on no
// match.
func (c *Collection) FindOne(ctx context.Context, filter Document, opts *FindOneOptions) (Document, bool, error) {
	if opts == nil {
		opts = &FindOneOptions{}
	}
	args, err := c.filterArgs(filter)
	if err != nil {
		return nil, false, err
	}
	if opts.Projection != nil {
		args["projection"] = opts.Projection
	}
	if opts.Sort != nil {
		if args["sort"], err = c.encode(opts.Sort); err != nil {
			return nil, false, err
		}
	}
	if opts.IncludeSimilarity {
		args["options"] = Document{"includeSimilarity": true}
	}

	resp, err := c.run(ctx, "findOne", args, true, opts.Timeout)
	if err != nil {
		return nil, false, err
	}
	raw, ok := resp.Data["document"].(map[string]any)
	if !ok {
		return nil, false, nil
	}
	doc, err := c.decode(resp, raw)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// Find returns an idle cursor over every matching document. The query shape
// is refined with the cursor's builder methods before iteration.
func (c *Collection) Find(filter Document) *FindCursor[Document] {
	return newFindCursor(&cursorSource{
		exec:       c.handle.db.exec,
		keyspace:   c.handle.keyspace,
		name:       c.handle.name,
		sourceType: "collection",
		timeouts:   c.handle.timeouts,
		headers:    c.handle.headers,
		encode:     c.encode,
		decode:     c.decode,
	}, filter)
}

// UpdateOptions shapes updateOne.
type UpdateOptions struct {
	Upsert  bool
	Sort    Document
	Timeout *time.Duration
}

// UpdateResult reports matched/modified counts and the upserted ID, if any.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
	UpsertedID    any
}

// UpdateOne applies update operators to the first matching document.
func (c *Collection) UpdateOne(ctx context.Context, filter, update Document, opts *UpdateOptions) (*UpdateResult, error) {
	if opts == nil {
		opts = &UpdateOptions{}
	}
	args, err := c.filterArgs(filter)
	if err != nil {
		return nil, err
	}
	if args["update"], err = c.encode(update); err != nil {
		return nil, err
	}
	if opts.Sort != nil {
		if args["sort"], err = c.encode(opts.Sort); err != nil {
			return nil, err
		}
	}
	if opts.Upsert {
		args["options"] = Document{"upsert": true}
	}

	resp, err := c.run(ctx, "updateOne", args, false, opts.Timeout)
	if err != nil {
		return nil, err
	}
	return c.updateResult(resp)
}

// ReplaceOne swaps the first matching document for the replacement, keeping
// its _id.
func (c *Collection) ReplaceOne(ctx context.Context, filter, replacement Document, opts *UpdateOptions) (*UpdateResult, error) {
	if opts == nil {
		opts = &UpdateOptions{}
	}
	args, err := c.filterArgs(filter)
	if err != nil {
		return nil, err
	}
	if args["replacement"], err = c.encode(replacement); err != nil {
		return nil, err
	}
	if opts.Sort != nil {
		if args["sort"], err = c.encode(opts.Sort); err != nil {
			return nil, err
		}
	}
	cmdOpts := Document{"returnDocument": "before"}
	if opts.Upsert {
		cmdOpts["upsert"] = true
	}
	args["options"] = cmdOpts

	resp, err := c.run(ctx, "findOneAndReplace", args, false, opts.Timeout)
	if err != nil {
		return nil, err
	}
	return c.updateResult(resp)
}

func (c *Collection) updateResult(resp *httpcore.RawResponse) (*UpdateResult, error) {
	out := &UpdateResult{}
	out.MatchedCount, _ = asInt64(resp.Status["matchedCount"])
	out.ModifiedCount, _ = asInt64(resp.Status["modifiedCount"])
	if raw, ok := resp.Status["upsertedId"]; ok {
		id, err := c.serdes.Deserialize(raw, resp.Raw)
		if err != nil {
			return nil, err
		}
		out.UpsertedID = id
	}
	return out, nil
}

// DeleteResult reports how many documents a delete removed.
type DeleteResult struct {
	DeletedCount int64
}

// DeleteOne removes the first matching document.
func (c *Collection) DeleteOne(ctx context.Context, filter Document, opts *UpdateOptions) (*DeleteResult, error) {
	if opts == nil {
		opts = &UpdateOptions{}
	}
	args, err := c.filterArgs(filter)
	if err != nil {
		return nil, err
	}
	if opts.Sort != nil {
		if args["sort"], err = c.encode(opts.Sort); err != nil {
			return nil, err
		}
	}
	resp, err := c.run(ctx, "deleteOne", args, false, opts.Timeout)
	if err != nil {
		return nil, err
	}
	out := &DeleteResult{}
	out.DeletedCount, _ = asInt64(resp.Status["deletedCount"])
	return out, nil
}

// DeleteMany removes every matching document. The server deletes in bounded
// batches and reports moreData while work remains, so this loops until done.
func (c *Collection) DeleteMany(ctx context.Context, filter Document) (*DeleteResult, error) {
	args, err := c.filterArgs(filter)
	if err != nil {
		return nil, err
	}
	out := &DeleteResult{}
	for {
		resp, err := c.run(ctx, "deleteMany", args, false, nil)
		if err != nil {
			return out, err
		}
		n, _ := asInt64(resp.Status["deletedCount"])
		out.DeletedCount += n
		if more, _ := resp.Status["moreData"].(bool); !more {
			return out, nil
		}
	}
}

// CountDocuments counts matching documents exactly, up to upperBound. The
// server also caps how far it will count; exceeding either bound is an error
// because the true count is then unknown.
func (c *Collection) CountDocuments(ctx context.Context, filter Document, upperBound int) (int, error) {
	if upperBound <= 0 {
		return 0, &apierr.ConfigurationError{FieldPath: "upperBound", Message: "upperBound must be positive"}
	}
	args, err := c.filterArgs(filter)
	if err != nil {
		return 0, err
	}
	resp, err := c.run(ctx, "countDocuments", args, true, nil)
	if err != nil {
		return 0, err
	}
	count, _ := asInt64(resp.Status["count"])
	if more, _ := resp.Status["moreData"].(bool); more {
		return 0, fmt.Errorf("too many documents to count: server stopped at %d", count)
	}
	if count > int64(upperBound) {
		return 0, fmt.Errorf("too many documents to count: %d exceeds the bound of %d", count, upperBound)
	}
	return int(count), nil
}

// EstimatedDocumentCount returns the server's cheap collection-size estimate.
func (c *Collection) EstimatedDocumentCount(ctx context.Context) (int64, error) {
	resp, err := c.run(ctx, "estimatedDocumentCount", Document{}, true, nil)
	if err != nil {
		return 0, err
	}
	count, _ := asInt64(resp.Status["count"])
	return count, nil
}

// FindOneAndOptions shapes the atomic find-and-modify family.
type FindOneAndOptions struct {
	Projection Document
	Sort       Document
	Upsert     bool
	// ReturnDocument selects "before" (default) or "after".
	ReturnDocument string
	Timeout        *time.Duration
}

// FindOneAndUpdate atomically updates one document and returns it (before or
// after the update, per options). found=false means no match and no upsert.
func (c *Collection) FindOneAndUpdate(ctx context.Context, filter, update Document, opts *FindOneAndOptions) (Document, bool, error) {
	return c.findOneAnd(ctx, "findOneAndUpdate", filter, Document{"update": update}, opts)
}

// FindOneAndReplace atomically replaces one document and returns it.
func (c *Collection) FindOneAndReplace(ctx context.Context, filter, replacement Document, opts *FindOneAndOptions) (Document, bool, error) {
	return c.findOneAnd(ctx, "findOneAndReplace", filter, Document{"replacement": replacement}, opts)
}

// FindOneAndDelete atomically removes one document and returns it.
func (c *Collection) FindOneAndDelete(ctx context.Context, filter Document, opts *FindOneAndOptions) (Document, bool, error) {
	return c.findOneAnd(ctx, "findOneAndDelete", filter, nil, opts)
}

func (c *Collection) findOneAnd(ctx context.Context, command string, filter, payload Document, opts *FindOneAndOptions) (Document, bool, error) {
	if opts == nil {
		opts = &FindOneAndOptions{}
	}
	args, err := c.filterArgs(filter)
	if err != nil {
		return nil, false, err
	}
	for k, v := range payload {
		if args[k], err = c.encode(v); err != nil {
			return nil, false, err
		}
	}
	if opts.Projection != nil {
		args["projection"] = opts.Projection
	}
	if opts.Sort != nil {
		if args["sort"], err = c.encode(opts.Sort); err != nil {
			return nil, false, err
		}
	}
	cmdOpts := Document{}
	if opts.Upsert {
		cmdOpts["upsert"] = true
	}
	if opts.ReturnDocument != "" {
		cmdOpts["returnDocument"] = opts.ReturnDocument
	}
	if len(cmdOpts) > 0 {
		args["options"] = cmdOpts
	}

	resp, err := c.run(ctx, command, args, false, opts.Timeout)
	if err != nil {
		return nil, false, err
	}
	raw, ok := resp.Data["document"].(map[string]any)
	if !ok {
		return nil, false, nil
	}
	doc, err := c.decode(resp, raw)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// Drop removes the whole collection.
func (c *Collection) Drop(ctx context.Context) error {
	return c.handle.db.DropCollection(ctx, c.handle.name)
}

func (c *Collection) filterArgs(filter Document) (Document, error) {
	if filter == nil {
		filter = Document{}
	}
	wire, err := c.encode(filter)
	if err != nil {
		return nil, err
	}
	return Document{"filter": wire}, nil
}
