// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
database.go - the keyspace-scoped facade

A Database addresses one Data API deployment. It carries the working keyspace
in a mutable cell: UseKeyspace swaps it, and collection/table handles capture
the keyspace current at their creation, so an in-flight cursor never changes
address mid-iteration.
*/

package client

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/datalith/apierr"
	"github.com/tomtom215/datalith/events"
	"github.com/tomtom215/datalith/internal/httpcore"
	"github.com/tomtom215/datalith/options"
	"github.com/tomtom215/datalith/serdes"
)

// Database is a handle on one Data API deployment plus a working keyspace.
type Database struct {
	client       *DataAPIClient
	emitter      *events.Emitter
	exec         *httpcore.Executor
	endpoint     string
	opts         options.ResolvedDB
	optsTimeouts options.TimeoutOptions
	timeouts     options.ResolvedTimeouts

	mu       sync.RWMutex
	keyspace string
}

// Endpoint is the API endpoint this database addresses.
func (d *Database) Endpoint() string { return d.endpoint }

// Keyspace is the current working keyspace.
func (d *Database) Keyspace() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.keyspace
}

// UseKeyspace switches the working keyspace. Handles created earlier keep
// the keyspace they were created with.
func (d *Database) UseKeyspace(keyspace string) error {
	if err := options.ValidateKeyspaceName(keyspace, "keyspace"); err != nil {
		return err
	}
	d.mu.Lock()
	d.keyspace = keyspace
	d.mu.Unlock()
	return nil
}

// On registers an event listener at the database node.
func (d *Database) On(name events.Name, fn events.Listener) func() {
	return d.emitter.On(name, fn)
}

// Collection opens a handle on a collection in the current keyspace. Option
// layers merge weakest-first on top of the database scope.
func (d *Database) Collection(name string, layers ...options.SourceOptions) (*Collection, error) {
	src, err := d.sourceScope(name, layers)
	if err != nil {
		return nil, err
	}
	sd := serdes.New(serdes.ModeCollection, serdes.Options{
		Keyspace:   src.keyspace,
		Source:     name,
		BigNumbers: src.opts.BigNumbers,
	})
	return &Collection{handle: src, serdes: sd}, nil
}

// Table opens a handle on a table in the current keyspace.
func (d *Database) Table(name string, layers ...options.SourceOptions) (*Table, error) {
	src, err := d.sourceScope(name, layers)
	if err != nil {
		return nil, err
	}
	sd := serdes.New(serdes.ModeTable, serdes.Options{
		Keyspace:   src.keyspace,
		Source:     name,
		BigNumbers: src.opts.BigNumbers,
	})
	return &Table{handle: src, serdes: sd}, nil
}

// sourceHandle is the shared state of Collection and Table.
type sourceHandle struct {
	db       *Database
	emitter  *events.Emitter
	name     string
	keyspace string
	opts     options.SourceOptions
	timeouts options.ResolvedTimeouts
	headers  []options.HeaderProvider
}

func (d *Database) sourceScope(name string, layers []options.SourceOptions) (*sourceHandle, error) {
	if err := options.ValidateSourceName(name, "name"); err != nil {
		return nil, err
	}
	merged := options.SourceMonoid().Concat(layers...)
	resolved, err := merged.Parse("source")
	if err != nil {
		return nil, err
	}

	timeouts, err := options.TimeoutMonoid().
		Concat(d.client.merged.Timeouts, d.optsTimeouts, resolved.Timeouts).
		Parse("source.timeouts")
	if err != nil {
		return nil, err
	}

	var headers []options.HeaderProvider
	if p := pickHeader(resolved.EmbeddingAPIKey, d.opts.EmbeddingAPIKey); p != nil {
		headers = append(headers, p)
	}
	if p := pickHeader(resolved.RerankingAPIKey, d.opts.RerankingAPIKey); p != nil {
		headers = append(headers, p)
	}

	emitter := events.NewEmitter(d.emitter)
	d.client.installSinks(emitter, mustResolveLogging(resolved.Logging))
	return &sourceHandle{
		db:       d,
		emitter:  emitter,
		name:     name,
		keyspace: d.Keyspace(),
		opts:     resolved,
		timeouts: timeouts,
		headers:  headers,
	}, nil
}

func pickHeader(strong, weak options.HeaderProvider) options.HeaderProvider {
	if strong != nil {
		return strong
	}
	return weak
}

// mustResolveLogging expands already-validated layers; Parse ran on them.
func mustResolveLogging(layers []options.LoggingLayer) []options.ResolvedLoggingLayer {
	out, err := options.ParseLoggingLayers(layers, "")
	if err != nil {
		return nil
	}
	return out
}

// CommandOptions tunes a raw Command call.
type CommandOptions struct {
	// Keyspace overrides the working keyspace; an explicit empty string
	// addresses the keyspace-less admin level.
	Keyspace *string
	// Source addresses a collection or table.
	Source string
	// Idempotent marks the command retry-safe.
	Idempotent bool
	// Timeout overrides the general method budget.
	Timeout *time.Duration
}

// Command runs a raw Data API command against the database and returns the
// decoded response envelope.
func (d *Database) Command(ctx context.Context, command string, args Document, opts *CommandOptions) (Document, error) {
	if opts == nil {
		opts = &CommandOptions{}
	}
	keyspace := d.Keyspace()
	if opts.Keyspace != nil {
		keyspace = *opts.Keyspace
	}
	budget := d.timeouts.GeneralMethod
	if opts.Timeout != nil {
		budget = *opts.Timeout
	}
	tm := httpcore.NewMultiPhase(apierr.TimeoutGeneral, budget, d.timeouts.Request)
	resp, err := d.exec.Execute(ctx, &httpcore.ExecuteOptions{
		Keyspace:   keyspace,
		Source:     opts.Source,
		Command:    command,
		Args:       args,
		Idempotent: opts.Idempotent,
		Timeout:    tm,
	})
	if err != nil {
		return nil, err
	}
	return resp.Raw, nil
}

// schemaCommand runs a keyspace-level schema operation under the given
// timeout category.
func (d *Database) schemaCommand(ctx context.Context, command string, args Document, cat apierr.TimeoutCategory) (*httpcore.RawResponse, error) {
	tm := httpcore.NewMultiPhase(cat, d.timeouts.ForCategory(cat), d.timeouts.Request)
	return d.exec.Execute(ctx, &httpcore.ExecuteOptions{
		Keyspace: d.Keyspace(),
		Command:  command,
		Args:     args,
		Timeout:  tm,
	})
}

// CreateCollection creates a collection and returns a handle on it. The
// definition is the raw creation options (vector, indexing, defaultId); nil
// creates a plain collection.
func (d *Database) CreateCollection(ctx context.Context, name string, definition Document) (*Collection, error) {
	if err := options.ValidateSourceName(name, "name"); err != nil {
		return nil, err
	}
	args := Document{"name": name}
	if definition != nil {
		args["options"] = definition
	}
	if _, err := d.schemaCommand(ctx, "createCollection", args, apierr.TimeoutCollectionAdmin); err != nil {
		return nil, err
	}
	return d.Collection(name)
}

// DropCollection removes a collection and its data.
func (d *Database) DropCollection(ctx context.Context, name string) error {
	_, err := d.schemaCommand(ctx, "deleteCollection", Document{"name": name}, apierr.TimeoutCollectionAdmin)
	return err
}

// ListCollections returns the full definition of every collection in the
// working keyspace.
func (d *Database) ListCollections(ctx context.Context) ([]Document, error) {
	resp, err := d.schemaCommand(ctx, "findCollections", Document{"options": Document{"explain": true}}, apierr.TimeoutCollectionAdmin)
	if err != nil {
		return nil, err
	}
	return docSlice(resp.Status["collections"]), nil
}

// ListCollectionNames returns just the collection names.
func (d *Database) ListCollectionNames(ctx context.Context) ([]string, error) {
	resp, err := d.schemaCommand(ctx, "findCollections", Document{"options": Document{"explain": false}}, apierr.TimeoutCollectionAdmin)
	if err != nil {
		return nil, err
	}
	return stringSlice(resp.Status["collections"]), nil
}

// CreateTable creates a table from its definition ({columns, primaryKey})
// and returns a handle on it.
func (d *Database) CreateTable(ctx context.Context, name string, definition Document) (*Table, error) {
	if err := options.ValidateSourceName(name, "name"); err != nil {
		return nil, err
	}
	args := Document{"name": name, "definition": definition}
	if _, err := d.schemaCommand(ctx, "createTable", args, apierr.TimeoutTableAdmin); err != nil {
		return nil, err
	}
	return d.Table(name)
}

// DropTable removes a table and its data.
func (d *Database) DropTable(ctx context.Context, name string) error {
	_, err := d.schemaCommand(ctx, "dropTable", Document{"name": name}, apierr.TimeoutTableAdmin)
	return err
}

// ListTables returns the full definition of every table in the working
// keyspace.
func (d *Database) ListTables(ctx context.Context) ([]Document, error) {
	resp, err := d.schemaCommand(ctx, "listTables", Document{"options": Document{"explain": true}}, apierr.TimeoutTableAdmin)
	if err != nil {
		return nil, err
	}
	return docSlice(resp.Status["tables"]), nil
}

// ListTableNames returns just the table names.
func (d *Database) ListTableNames(ctx context.Context) ([]string, error) {
	resp, err := d.schemaCommand(ctx, "listTables", Document{"options": Document{"explain": false}}, apierr.TimeoutTableAdmin)
	if err != nil {
		return nil, err
	}
	return stringSlice(resp.Status["tables"]), nil
}
