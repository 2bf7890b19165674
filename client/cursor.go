// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
cursor.go - the lazy paginated cursor engine

A FindCursor is two things at once: an immutable query shape built with
builder methods, and a mutable iteration head (state, buffer, page token).
Builder methods are legal only while idle and always return a NEW idle
cursor; the iteration head never migrates between cursors. Page fetches are
strictly sequential per cursor, guarded by the cursor mutex.
*/

package client

import (
	"context"
	"sync"

	"github.com/tomtom215/datalith/apierr"
	"github.com/tomtom215/datalith/datatypes"
	"github.com/tomtom215/datalith/internal/httpcore"
	"github.com/tomtom215/datalith/internal/metrics"
	"github.com/tomtom215/datalith/options"
)

// Document is the generic record form both collections and tables speak.
type Document = map[string]any

// CursorState names a point in the cursor lifecycle.
type CursorState string

const (
	CursorIdle    CursorState = "idle"
	CursorStarted CursorState = "started"
	CursorClosed  CursorState = "closed"
)

type sortVectorState int

const (
	sortVectorUnattempted sortVectorState = iota
	sortVectorPresent
	sortVectorAbsent
)

// cursorSource is what a cursor needs from its owning handle: the executor,
// addressing, budgets, and the handle's serdes seam.
type cursorSource struct {
	exec       *httpcore.Executor
	keyspace   string
	name       string
	sourceType string // "collection" or "table", for metrics
	timeouts   options.ResolvedTimeouts
	headers    []options.HeaderProvider

	encode func(v any) (any, error)
	decode func(resp *httpcore.RawResponse, doc any) (Document, error)
}

// FindCursor is a lazy view over a server-paginated find. The zero value is
// not usable; obtain cursors from Collection.Find or Table.Find.
type FindCursor[T any] struct {
	src *cursorSource

	// Query shape; immutable once iteration begins.
	filter            Document
	projection        Document
	sortSpec          Document
	limit             int
	skip              int
	includeSimilarity bool
	includeSortVector bool
	mapFn             func(Document) (T, error)
	mapped            bool

	// Iteration head.
	mu             sync.Mutex
	state          CursorState
	buffer         []Document
	pageState      string
	exhausted      bool
	consumed       int
	wantSortVector bool
	svState        sortVectorState
	sortVector     datatypes.Vector
}

func newFindCursor(src *cursorSource, filter Document) *FindCursor[Document] {
	if filter == nil {
		filter = Document{}
	}
	return &FindCursor[Document]{
		src:    src,
		filter: filter,
		state:  CursorIdle,
	}
}

// fork copies the query shape into a fresh idle cursor. Legal only in idle.
func (c *FindCursor[T]) fork(op string) (*FindCursor[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != CursorIdle {
		return nil, &apierr.CursorStateError{State: string(c.state), Op: op}
	}
	return &FindCursor[T]{
		src:               c.src,
		filter:            c.filter,
		projection:        c.projection,
		sortSpec:          c.sortSpec,
		limit:             c.limit,
		skip:              c.skip,
		includeSimilarity: c.includeSimilarity,
		includeSortVector: c.includeSortVector,
		mapFn:             c.mapFn,
		mapped:            c.mapped,
		state:             CursorIdle,
		wantSortVector:    c.includeSortVector,
	}, nil
}

// Filter returns a new idle cursor with the filter replaced.
func (c *FindCursor[T]) Filter(filter Document) (*FindCursor[T], error) {
	out, err := c.fork("filter")
	if err != nil {
		return nil, err
	}
	if filter == nil {
		filter = Document{}
	}
	out.filter = filter
	return out, nil
}

// Sort returns a new idle cursor with the sort replaced.
func (c *FindCursor[T]) Sort(sort Document) (*FindCursor[T], error) {
	out, err := c.fork("sort")
	if err != nil {
		return nil, err
	}
	out.sortSpec = sort
	return out, nil
}

// Limit returns a new idle cursor capped at n items. Zero means unbounded
// (the server applies its own ceiling).
func (c *FindCursor[T]) Limit(n int) (*FindCursor[T], error) {
	if n < 0 {
		return nil, &apierr.ConfigurationError{FieldPath: "limit", Message: "limit must be non-negative"}
	}
	out, err := c.fork("limit")
	if err != nil {
		return nil, err
	}
	out.limit = n
	return out, nil
}

// Skip returns a new idle cursor skipping the first n items. A sort must
// already be set: skipping an unordered stream is non-deterministic.
func (c *FindCursor[T]) Skip(n int) (*FindCursor[T], error) {
	if n < 0 {
		return nil, &apierr.ConfigurationError{FieldPath: "skip", Message: "skip must be non-negative"}
	}
	if c.sortSpec == nil {
		return nil, &apierr.ConfigurationError{FieldPath: "skip", Message: "skip requires a sort to be set first"}
	}
	out, err := c.fork("skip")
	if err != nil {
		return nil, err
	}
	out.skip = n
	return out, nil
}

// Project returns a new idle cursor with the projection replaced. Rejected
// once a mapping is installed: the mapping was written against the previous
// field shape.
func (c *FindCursor[T]) Project(projection Document) (*FindCursor[T], error) {
	if c.mapped {
		return nil, &apierr.CursorStateError{State: string(c.State()), Op: "project after map"}
	}
	out, err := c.fork("project")
	if err != nil {
		return nil, err
	}
	out.projection = projection
	return out, nil
}

// IncludeSimilarity returns a new idle cursor toggling the $similarity field.
func (c *FindCursor[T]) IncludeSimilarity(include bool) (*FindCursor[T], error) {
	out, err := c.fork("includeSimilarity")
	if err != nil {
		return nil, err
	}
	out.includeSimilarity = include
	return out, nil
}

// IncludeSortVector returns a new idle cursor that asks the server to echo
// the sort vector on the first page, retrievable via GetSortVector.
func (c *FindCursor[T]) IncludeSortVector(include bool) (*FindCursor[T], error) {
	out, err := c.fork("includeSortVector")
	if err != nil {
		return nil, err
	}
	out.includeSortVector = include
	out.wantSortVector = include
	return out, nil
}

// Map returns a new idle cursor whose mapping is f composed after any
// existing mapping. A mapping error during iteration closes the cursor.
func (c *FindCursor[T]) Map(f func(T) (T, error)) (*FindCursor[T], error) {
	out, err := c.fork("map")
	if err != nil {
		return nil, err
	}
	prev := c.mapFn
	out.mapFn = func(doc Document) (T, error) {
		v, err := applyMapping(prev, doc)
		if err != nil {
			var zero T
			return zero, err
		}
		return f(v)
	}
	out.mapped = true
	return out, nil
}

// MapCursor returns a new idle cursor producing U by applying f after c's
// mapping chain. The usual way to lift raw documents into a domain type.
func MapCursor[T, U any](c *FindCursor[T], f func(T) (U, error)) (*FindCursor[U], error) {
	base, err := c.fork("map")
	if err != nil {
		return nil, err
	}
	prev := base.mapFn
	return &FindCursor[U]{
		src:               base.src,
		filter:            base.filter,
		projection:        base.projection,
		sortSpec:          base.sortSpec,
		limit:             base.limit,
		skip:              base.skip,
		includeSimilarity: base.includeSimilarity,
		includeSortVector: base.includeSortVector,
		mapFn: func(doc Document) (U, error) {
			v, err := applyMapping(prev, doc)
			if err != nil {
				var zero U
				return zero, err
			}
			return f(v)
		},
		mapped:         true,
		state:          CursorIdle,
		wantSortVector: base.includeSortVector,
	}, nil
}

func applyMapping[T any](mapFn func(Document) (T, error), doc Document) (T, error) {
	if mapFn == nil {
		// Only identity cursors carry a nil mapping, so T is Document here.
		return any(doc).(T), nil
	}
	return mapFn(doc)
}

// Clone returns a new idle cursor with the same shape and mapping, regardless
// of this cursor's state.
func (c *FindCursor[T]) Clone() *FindCursor[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &FindCursor[T]{
		src:               c.src,
		filter:            c.filter,
		projection:        c.projection,
		sortSpec:          c.sortSpec,
		limit:             c.limit,
		skip:              c.skip,
		includeSimilarity: c.includeSimilarity,
		includeSortVector: c.includeSortVector,
		mapFn:             c.mapFn,
		mapped:            c.mapped,
		state:             CursorIdle,
		wantSortVector:    c.includeSortVector,
	}
}

// Rewind resets this cursor to idle, clearing the buffer and page token but
// keeping the query shape and mapping.
func (c *FindCursor[T]) Rewind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = CursorIdle
	c.buffer = nil
	c.pageState = ""
	c.exhausted = false
	c.consumed = 0
	c.wantSortVector = c.includeSortVector
	c.svState = sortVectorUnattempted
	c.sortVector = datatypes.Vector{}
}

// Close transitions the cursor to closed and discards the buffer. Idempotent.
func (c *FindCursor[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *FindCursor[T]) closeLocked() {
	c.state = CursorClosed
	c.buffer = nil
}

// State reports the lifecycle point: idle, started, or closed.
func (c *FindCursor[T]) State() CursorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Consumed is the number of items handed to the consumer so far.
func (c *FindCursor[T]) Consumed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consumed
}

// Buffered is the number of fetched items not yet consumed.
func (c *FindCursor[T]) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

// ConsumeBuffer removes and returns up to n raw, un-mapped buffered items;
// n <= 0 drains the whole buffer. No fetch is triggered.
func (c *FindCursor[T]) ConsumeBuffer(n int) []Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 || n > len(c.buffer) {
		n = len(c.buffer)
	}
	out := c.buffer[:n]
	c.buffer = c.buffer[n:]
	c.consumed += len(out)
	return out
}

// Next returns the next element, fetching pages as needed. The second return
// is false at end of stream or on a closed cursor.
func (c *FindCursor[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok, err := c.nextDocLocked(ctx)
	if err != nil || !ok {
		return zero, false, err
	}
	out, err := applyMapping(c.mapFn, doc)
	if err != nil {
		c.closeLocked()
		return zero, false, err
	}
	return out, true, nil
}

// HasNext reports whether another element is available, fetching the next
// page if the buffer is empty. It does not advance the cursor.
func (c *FindCursor[T]) HasNext(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == CursorClosed {
		return false, nil
	}
	for len(c.buffer) == 0 {
		if c.exhausted {
			return false, nil
		}
		if err := c.fetchPageLocked(ctx); err != nil {
			c.closeLocked()
			return false, err
		}
	}
	return true, nil
}

// ToArray drains the cursor to completion and closes it. Calling it on an
// already-closed cursor is a state error.
func (c *FindCursor[T]) ToArray(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == CursorClosed {
		return nil, &apierr.CursorStateError{State: string(c.state), Op: "toArray"}
	}

	var out []T
	for {
		doc, ok, err := c.nextDocLocked(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			c.closeLocked()
			return out, nil
		}
		v, err := applyMapping(c.mapFn, doc)
		if err != nil {
			c.closeLocked()
			return nil, err
		}
		out = append(out, v)
	}
}

// ForEach applies fn to each element in order; returning false stops early
// and closes the cursor.
func (c *FindCursor[T]) ForEach(ctx context.Context, fn func(T) bool) error {
	for {
		v, ok, err := c.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			c.Close()
			return nil
		}
		if !fn(v) {
			c.Close()
			return nil
		}
	}
}

// GetSortVector returns the sort vector the server used, when
// IncludeSortVector was set. An unexecuted cursor issues one probe fetch
// (its buffer is kept); the result is cached for later calls. The cursor
// returns to idle after the probe if it was idle before.
func (c *FindCursor[T]) GetSortVector(ctx context.Context) (datatypes.Vector, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.includeSortVector {
		return datatypes.Vector{}, false, nil
	}
	if c.svState == sortVectorUnattempted && c.state != CursorClosed {
		wasIdle := c.state == CursorIdle
		if err := c.fetchPageLocked(ctx); err != nil {
			c.closeLocked()
			return datatypes.Vector{}, false, err
		}
		if wasIdle {
			c.state = CursorIdle
		}
	}
	if c.svState == sortVectorPresent {
		return c.sortVector, true, nil
	}
	return datatypes.Vector{}, false, nil
}

// nextDocLocked pops the next raw document, fetching pages as needed. A
// depleted stream closes the cursor and reports ok=false.
func (c *FindCursor[T]) nextDocLocked(ctx context.Context) (Document, bool, error) {
	if c.state == CursorClosed {
		return nil, false, nil
	}
	for len(c.buffer) == 0 {
		if c.exhausted {
			c.closeLocked()
			return nil, false, nil
		}
		if err := c.fetchPageLocked(ctx); err != nil {
			c.closeLocked()
			return nil, false, err
		}
	}
	doc := c.buffer[0]
	c.buffer = c.buffer[1:]
	c.consumed++
	return doc, true, nil
}

// fetchPageLocked issues one find command and appends the page to the buffer.
func (c *FindCursor[T]) fetchPageLocked(ctx context.Context) error {
	args := Document{}

	filter, err := c.src.encode(c.filter)
	if err != nil {
		return err
	}
	args["filter"] = filter

	if c.projection != nil {
		args["projection"] = c.projection
	}
	if c.sortSpec != nil {
		sort, err := c.src.encode(c.sortSpec)
		if err != nil {
			return err
		}
		args["sort"] = sort
	}

	findOpts := Document{}
	if c.includeSimilarity {
		findOpts["includeSimilarity"] = true
	}
	if c.wantSortVector {
		findOpts["includeSortVector"] = true
	}
	if c.limit > 0 {
		findOpts["limit"] = c.limit
	}
	if c.skip > 0 {
		findOpts["skip"] = c.skip
	}
	if c.pageState != "" {
		findOpts["pageState"] = c.pageState
	}
	if len(findOpts) > 0 {
		args["options"] = findOpts
	}

	tm := httpcore.NewMultiPhase(apierr.TimeoutGeneral, c.src.timeouts.GeneralMethod, c.src.timeouts.Request)
	resp, err := c.src.exec.Execute(ctx, &httpcore.ExecuteOptions{
		Keyspace:     c.src.keyspace,
		Source:       c.src.name,
		Command:      "find",
		Args:         args,
		Idempotent:   true,
		ExtraHeaders: c.src.headers,
		Timeout:      tm,
	})
	if err != nil {
		return err
	}

	c.state = CursorStarted
	metrics.CursorPagesFetched.WithLabelValues(c.src.sourceType).Inc()

	if c.wantSortVector && c.svState == sortVectorUnattempted {
		c.svState = sortVectorAbsent
		if raw, ok := resp.Status["sortVector"].([]any); ok {
			comps := make([]float64, 0, len(raw))
			for _, v := range raw {
				f, ok := asFloat(v)
				if !ok {
					comps = nil
					break
				}
				comps = append(comps, f)
			}
			if comps != nil {
				c.sortVector = datatypes.NewVectorFromFloat64s(comps)
				c.svState = sortVectorPresent
			}
		}
	}
	// The echo costs the server work on every page; ask only once.
	c.wantSortVector = false

	docs, _ := resp.Data["documents"].([]any)
	for _, d := range docs {
		doc, err := c.src.decode(resp, d)
		if err != nil {
			return err
		}
		c.buffer = append(c.buffer, doc)
	}
	metrics.CursorDocumentsYielded.WithLabelValues(c.src.sourceType).Add(float64(len(docs)))

	if next, ok := resp.Data["nextPageState"].(string); ok && next != "" {
		c.pageState = next
	} else {
		c.exhausted = true
	}
	return nil
}
