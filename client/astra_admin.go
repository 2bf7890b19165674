// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
astra_admin.go - the Astra DevOps control plane

Database lifecycle rides the async DevOps pattern: create/terminate answer
with a Location header and the resource is polled until it reaches the
target status. All calls here go through the circuit-breaking DevOps client
and are pinned to HTTP/1.x.
*/

package client

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/datalith/apierr"
	"github.com/tomtom215/datalith/events"
	"github.com/tomtom215/datalith/internal/httpcore"
	"github.com/tomtom215/datalith/options"
)

// Astra database statuses observed by the provisioning poll loop.
const (
	DatabaseStatusInitializing = "INITIALIZING"
	DatabaseStatusPending      = "PENDING"
	DatabaseStatusAssociating  = "ASSOCIATING"
	DatabaseStatusActive       = "ACTIVE"
	DatabaseStatusMaintenance  = "MAINTENANCE"
	DatabaseStatusTerminating  = "TERMINATING"
	DatabaseStatusTerminated   = "TERMINATED"
)

// AstraAdmin is the control-plane facade. Safe for concurrent use.
type AstraAdmin struct {
	client   *DataAPIClient
	devops   *httpcore.DevOpsClient
	emitter  *events.Emitter
	env      options.Environment
	timeouts options.ResolvedTimeouts
}

// On registers an event listener at the admin node.
func (a *AstraAdmin) On(name events.Name, fn events.Listener) func() {
	return a.emitter.On(name, fn)
}

// DatabaseInfo is the control-plane view of one database.
type DatabaseInfo struct {
	ID            string
	Name          string
	CloudProvider string
	Region        string
	Status        string
	Keyspaces     []string
}

// Endpoint derives the database's Data API endpoint for the given
// environment: https://{id}-{region}.apps{""|-dev|-test}.astra.datastax.com.
func (i *DatabaseInfo) Endpoint(env options.Environment) string {
	return AstraEndpoint(i.ID, i.Region, env)
}

// AstraEndpoint derives a Data API endpoint from a database ID and region.
func AstraEndpoint(id, region string, env options.Environment) string {
	return fmt.Sprintf("https://%s-%s.apps%s.astra.datastax.com", id, region, env.DomainSuffix())
}

func parseDatabaseInfo(raw map[string]any) DatabaseInfo {
	out := DatabaseInfo{}
	out.ID, _ = raw["id"].(string)
	out.Status, _ = raw["status"].(string)
	if info, ok := raw["info"].(map[string]any); ok {
		out.Name, _ = info["name"].(string)
		out.CloudProvider, _ = info["cloudProvider"].(string)
		out.Region, _ = info["region"].(string)
		out.Keyspaces = stringSlice(info["keyspaces"])
	}
	return out
}

// CreateDatabaseOptions names the database to provision.
type CreateDatabaseOptions struct {
	Name          string
	CloudProvider string // AWS, GCP, or AZURE
	Region        string
	Keyspace      string // defaults to default_keyspace
}

// WaitOptions tunes the provisioning poll.
type WaitOptions struct {
	// NonBlocking returns right after the initial request instead of polling
	// until the target status.
	NonBlocking bool
	// PollInterval defaults to 10s.
	PollInterval time.Duration
	// Timeout overrides the database-admin budget for the whole operation.
	Timeout *time.Duration
}

func (a *AstraAdmin) provisioningTM(wait *WaitOptions) *httpcore.TimeoutManager {
	budget := a.timeouts.DatabaseAdmin
	if wait != nil && wait.Timeout != nil {
		budget = *wait.Timeout
	}
	return httpcore.NewMultiPhase(apierr.TimeoutProvisioning, budget, a.timeouts.Request)
}

func (a *AstraAdmin) adminTM() *httpcore.TimeoutManager {
	return httpcore.NewMultiPhase(apierr.TimeoutAdmin, a.timeouts.GeneralMethod, a.timeouts.Request)
}

// CreateDatabase provisions a serverless vector database. By default it
// blocks until the database reaches ACTIVE, emitting a polling event per
// status check; NonBlocking returns as soon as the ID is known.
func (a *AstraAdmin) CreateDatabase(ctx context.Context, def CreateDatabaseOptions, wait *WaitOptions) (*DatabaseInfo, error) {
	if def.Name == "" || def.CloudProvider == "" || def.Region == "" {
		return nil, &apierr.ConfigurationError{
			FieldPath: "createDatabase",
			Message:   "name, cloudProvider, and region are all required",
		}
	}
	keyspace := def.Keyspace
	if keyspace == "" {
		keyspace = options.DefaultKeyspace
	}

	blocking := wait == nil || !wait.NonBlocking
	var interval time.Duration
	if wait != nil {
		interval = wait.PollInterval
	}

	body := Document{
		"name":          def.Name,
		"cloudProvider": def.CloudProvider,
		"region":        def.Region,
		"keyspace":      keyspace,
		"capacityUnits": 1,
		"tier":          "serverless",
		"dbType":        "vector",
	}
	resp, id, err := a.devops.RequestLongRunning(ctx,
		&httpcore.DevOpsRequest{Method: "POST", Path: "/databases", Body: body},
		&httpcore.LongRunningInfo{
			Resource:     "database",
			Blocking:     blocking,
			PollInterval: interval,
			StatusPath:   func(id string) string { return "/databases/" + id },
			Target:       DatabaseStatusActive,
			LegalStates: []string{
				DatabaseStatusInitializing, DatabaseStatusPending,
				DatabaseStatusAssociating, DatabaseStatusMaintenance,
			},
		}, a.provisioningTM(wait))
	if err != nil {
		return nil, err
	}

	if !blocking {
		return &DatabaseInfo{
			ID:            id,
			Name:          def.Name,
			CloudProvider: def.CloudProvider,
			Region:        def.Region,
			Status:        DatabaseStatusInitializing,
			Keyspaces:     []string{keyspace},
		}, nil
	}

	var raw map[string]any
	if err := httpcore.DecodeBody(resp, &raw); err != nil {
		return nil, err
	}
	info := parseDatabaseInfo(raw)
	if info.ID == "" {
		info.ID = id
	}
	return &info, nil
}

// DropDatabase terminates a database. Blocking waits for TERMINATED.
func (a *AstraAdmin) DropDatabase(ctx context.Context, id string, wait *WaitOptions) error {
	blocking := wait == nil || !wait.NonBlocking
	var interval time.Duration
	if wait != nil {
		interval = wait.PollInterval
	}
	_, _, err := a.devops.RequestLongRunning(ctx,
		&httpcore.DevOpsRequest{Method: "POST", Path: "/databases/" + id + "/terminate"},
		&httpcore.LongRunningInfo{
			Resource:     "database",
			Blocking:     blocking,
			PollInterval: interval,
			// Terminate answers without a Location header; the ID is already
			// known.
			ExtractID:  func(*httpcore.FetchResponse) (string, error) { return id, nil },
			StatusPath: func(id string) string { return "/databases/" + id },
			Target:     DatabaseStatusTerminated,
			LegalStates: []string{
				DatabaseStatusTerminating, DatabaseStatusActive, DatabaseStatusMaintenance,
			},
		}, a.provisioningTM(wait))
	return err
}

// ListDatabases returns every non-terminated database in the organization.
func (a *AstraAdmin) ListDatabases(ctx context.Context) ([]DatabaseInfo, error) {
	resp, err := a.devops.Request(ctx,
		&httpcore.DevOpsRequest{Method: "GET", Path: "/databases", Query: "include=nonterminated&limit=100"},
		a.adminTM())
	if err != nil {
		return nil, err
	}
	var raw []map[string]any
	if err := httpcore.DecodeBody(resp, &raw); err != nil {
		return nil, err
	}
	out := make([]DatabaseInfo, 0, len(raw))
	for _, entry := range raw {
		out = append(out, parseDatabaseInfo(entry))
	}
	return out, nil
}

// Database returns the control-plane record of one database.
func (a *AstraAdmin) Database(ctx context.Context, id string) (*DatabaseInfo, error) {
	resp, err := a.devops.Request(ctx,
		&httpcore.DevOpsRequest{Method: "GET", Path: "/databases/" + id},
		a.adminTM())
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := httpcore.DecodeBody(resp, &raw); err != nil {
		return nil, err
	}
	info := parseDatabaseInfo(raw)
	return &info, nil
}

// RegionInfo describes one serverless region.
type RegionInfo struct {
	Name           string
	CloudProvider  string
	Zone           string
	Classification string
	Enabled        bool
}

// FindRegionsOptions filters region discovery.
type FindRegionsOptions struct {
	// OnlyOrgEnabledRegions limits results to regions enabled for the
	// organization. Unset behaves as true.
	OnlyOrgEnabledRegions *bool
}

// FindAvailableRegions lists the serverless vector regions available to the
// organization.
func (a *AstraAdmin) FindAvailableRegions(ctx context.Context, opts *FindRegionsOptions) ([]RegionInfo, error) {
	filter := "enabled"
	if opts != nil && opts.OnlyOrgEnabledRegions != nil && !*opts.OnlyOrgEnabledRegions {
		filter = "disabled"
	}
	resp, err := a.devops.Request(ctx, &httpcore.DevOpsRequest{
		Method: "GET",
		Path:   "/regions/serverless",
		Query:  "region-type=vector&filter-by-org=" + filter,
	}, a.adminTM())
	if err != nil {
		return nil, err
	}
	var raw []map[string]any
	if err := httpcore.DecodeBody(resp, &raw); err != nil {
		return nil, err
	}
	out := make([]RegionInfo, 0, len(raw))
	for _, entry := range raw {
		region := RegionInfo{}
		region.Name, _ = entry["name"].(string)
		region.CloudProvider, _ = entry["cloudProvider"].(string)
		region.Zone, _ = entry["zone"].(string)
		region.Classification, _ = entry["classification"].(string)
		region.Enabled, _ = entry["enabled"].(bool)
		out = append(out, region)
	}
	return out, nil
}

// DB opens a Database handle on a provisioned database, deriving its
// endpoint from the ID and region.
func (a *AstraAdmin) DB(info *DatabaseInfo, layers ...options.DBOptions) (*Database, error) {
	return a.client.DB(info.Endpoint(a.env), layers...)
}
