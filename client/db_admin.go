// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
db_admin.go - keyspace lifecycle over the Data API

Keyspace operations are Data API commands addressed at the root of the
deployment (no keyspace segment in the URL). This form works against every
environment, DSE and HCD included; Astra deployments additionally expose the
same lifecycle through the DevOps API, which Datalith does not duplicate.
*/

package client

import (
	"context"

	"github.com/tomtom215/datalith/apierr"
	"github.com/tomtom215/datalith/internal/httpcore"
	"github.com/tomtom215/datalith/options"
)

// DatabaseAdmin manages keyspaces of one deployment.
type DatabaseAdmin struct {
	db *Database
}

// Admin returns the keyspace-lifecycle facade for this database.
func (d *Database) Admin() *DatabaseAdmin {
	return &DatabaseAdmin{db: d}
}

// adminRun executes a root-level admin command under the keyspace-admin
// budget.
func (a *DatabaseAdmin) adminRun(ctx context.Context, command string, args Document) (*httpcore.RawResponse, error) {
	tm := httpcore.NewMultiPhase(apierr.TimeoutKeyspaceAdmin, a.db.timeouts.KeyspaceAdmin, a.db.timeouts.Request)
	return a.db.exec.Execute(ctx, &httpcore.ExecuteOptions{
		Command: command,
		Args:    args,
		Timeout: tm,
	})
}

// CreateKeyspace creates a keyspace. It does not switch the database handle
// to it; call UseKeyspace for that.
func (a *DatabaseAdmin) CreateKeyspace(ctx context.Context, name string) error {
	if err := options.ValidateKeyspaceName(name, "name"); err != nil {
		return err
	}
	_, err := a.adminRun(ctx, "createKeyspace", Document{"name": name})
	return err
}

// DropKeyspace removes a keyspace and everything in it.
func (a *DatabaseAdmin) DropKeyspace(ctx context.Context, name string) error {
	_, err := a.adminRun(ctx, "dropKeyspace", Document{"name": name})
	return err
}

// ListKeyspaces returns every keyspace name in the deployment.
func (a *DatabaseAdmin) ListKeyspaces(ctx context.Context) ([]string, error) {
	resp, err := a.adminRun(ctx, "findKeyspaces", Document{})
	if err != nil {
		return nil, err
	}
	return stringSlice(resp.Status["keyspaces"]), nil
}

// FindEmbeddingProviders returns the embedding providers the deployment
// supports for server-side vectorization, keyed by provider name.
func (a *DatabaseAdmin) FindEmbeddingProviders(ctx context.Context) (Document, error) {
	resp, err := a.adminRun(ctx, "findEmbeddingProviders", Document{})
	if err != nil {
		return nil, err
	}
	providers, _ := resp.Status["embeddingProviders"].(map[string]any)
	return providers, nil
}
