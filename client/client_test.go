// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/datalith/apierr"
	"github.com/tomtom215/datalith/events"
	"github.com/tomtom215/datalith/internal/logging"
	"github.com/tomtom215/datalith/options"
)

// eventLog collects bubbled events per family, in arrival order.
type eventLog struct {
	mu    sync.Mutex
	names []events.Name
}

func (l *eventLog) attach(c *DataAPIClient) {
	for _, name := range events.AllNames() {
		c.On(name, func(e *events.Event) {
			l.mu.Lock()
			l.names = append(l.names, e.Name)
			l.mu.Unlock()
		})
	}
}

func (l *eventLog) count(name events.Name) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, got := range l.names {
		if got == name {
			n++
		}
	}
	return n
}

func newAdminClient(t *testing.T, devopsURL string) (*DataAPIClient, *AstraAdmin) {
	t.Helper()
	c, err := New(options.StaticTokenProvider("admin-token"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	admin, err := c.Admin(AdminOptions{Endpoint: devopsURL})
	if err != nil {
		t.Fatalf("admin: %v", err)
	}
	return c, admin
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestCreateDatabaseBlocksUntilActive(t *testing.T) {
	var statusCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /databases", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer admin-token" {
			t.Errorf("authorization = %q", got)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "mydb" || body["tier"] != "serverless" {
			t.Errorf("create body = %v", body)
		}
		w.Header().Set("Location", "/v2/databases/db-1")
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /databases/db-1", func(w http.ResponseWriter, r *http.Request) {
		status := DatabaseStatusInitializing
		switch statusCalls.Add(1) {
		case 2:
			status = DatabaseStatusPending
		case 3:
			status = DatabaseStatusActive
		}
		writeJSON(t, w, map[string]any{
			"id":     "db-1",
			"status": status,
			"info": map[string]any{
				"name":          "mydb",
				"cloudProvider": "GCP",
				"region":        "us-east1",
				"keyspaces":     []string{"default_keyspace"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, admin := newAdminClient(t, srv.URL)
	log := &eventLog{}
	log.attach(c)

	info, err := admin.CreateDatabase(context.Background(),
		CreateDatabaseOptions{Name: "mydb", CloudProvider: "GCP", Region: "us-east1"},
		&WaitOptions{PollInterval: 5 * time.Millisecond})
	if err != nil {
		t.Fatalf("createDatabase: %v", err)
	}

	if info.ID != "db-1" || info.Status != DatabaseStatusActive {
		t.Errorf("info = %+v", info)
	}
	if got := statusCalls.Load(); got != 3 {
		t.Errorf("status polls = %d, want 3", got)
	}
	if want := "https://db-1-us-east1.apps.astra.datastax.com"; info.Endpoint(c.Environment()) != want {
		t.Errorf("endpoint = %s", info.Endpoint(c.Environment()))
	}

	// One lifecycle: outer started/succeeded, a started/succeeded pair per
	// HTTP exchange underneath, and a polling event per status check.
	if log.count(events.AdminCommandPolling) != 3 {
		t.Errorf("polling events = %d", log.count(events.AdminCommandPolling))
	}
	if log.count(events.AdminCommandStarted) == 0 || log.count(events.AdminCommandSucceeded) == 0 {
		t.Error("missing admin lifecycle events")
	}
	if log.count(events.AdminCommandFailed) != 0 {
		t.Error("unexpected failed events")
	}
}

func TestCreateDatabaseNonBlocking(t *testing.T) {
	var statusCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /databases", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/v2/databases/db-9")
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /databases/db-9", func(w http.ResponseWriter, r *http.Request) {
		statusCalls.Add(1)
		writeJSON(t, w, map[string]any{"id": "db-9", "status": DatabaseStatusInitializing})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, admin := newAdminClient(t, srv.URL)
	log := &eventLog{}
	log.attach(c)

	info, err := admin.CreateDatabase(context.Background(),
		CreateDatabaseOptions{Name: "mydb", CloudProvider: "AWS", Region: "us-east-2"},
		&WaitOptions{NonBlocking: true})
	if err != nil {
		t.Fatalf("createDatabase: %v", err)
	}
	if info.ID != "db-9" || info.Status != DatabaseStatusInitializing {
		t.Errorf("info = %+v", info)
	}
	if statusCalls.Load() != 0 {
		t.Error("non-blocking create must not poll")
	}
	if log.count(events.AdminCommandPolling) != 0 {
		t.Error("non-blocking create must not emit polling events")
	}
}

func TestCreateDatabaseRequiredFields(t *testing.T) {
	_, admin := newAdminClient(t, "http://unused.invalid")
	_, err := admin.CreateDatabase(context.Background(), CreateDatabaseOptions{Name: "x"}, nil)
	var cfg *apierr.ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("want ConfigurationError, got %v", err)
	}
}

func TestDropDatabaseIllegalStatusFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /databases/db-1/terminate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /databases/db-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"id": "db-1", "status": "ERROR"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, admin := newAdminClient(t, srv.URL)
	err := admin.DropDatabase(context.Background(), "db-1", &WaitOptions{PollInterval: 5 * time.Millisecond})
	var ona *apierr.OperationNotAllowedError
	if !errors.As(err, &ona) {
		t.Fatalf("want OperationNotAllowedError, got %v", err)
	}
	if ona.Status != "ERROR" {
		t.Errorf("status = %s", ona.Status)
	}
}

func TestFindAvailableRegionsFilter(t *testing.T) {
	var query atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("GET /regions/serverless", func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.RawQuery)
		writeJSON(t, w, []map[string]any{
			{"name": "us-east1", "cloudProvider": "GCP", "zone": "na", "classification": "standard", "enabled": true},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, admin := newAdminClient(t, srv.URL)

	regions, err := admin.FindAvailableRegions(context.Background(), nil)
	if err != nil {
		t.Fatalf("findAvailableRegions: %v", err)
	}
	if len(regions) != 1 || regions[0].Name != "us-east1" || !regions[0].Enabled {
		t.Errorf("regions = %+v", regions)
	}
	if got := query.Load().(string); got != "region-type=vector&filter-by-org=enabled" {
		t.Errorf("query = %s", got)
	}

	no := false
	if _, err := admin.FindAvailableRegions(context.Background(), &FindRegionsOptions{OnlyOrgEnabledRegions: &no}); err != nil {
		t.Fatalf("findAvailableRegions: %v", err)
	}
	if got := query.Load().(string); got != "region-type=vector&filter-by-org=disabled" {
		t.Errorf("query = %s", got)
	}
}

func TestAdminRequiresAstraEnvironment(t *testing.T) {
	env := options.EnvDSE
	c, err := New(options.StaticTokenProvider("tok"), options.ClientOptions{Environment: &env})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()
	if _, err := c.Admin(); err == nil {
		t.Fatal("admin on a dse client must fail")
	}
}

func TestAstraEndpointPerEnvironment(t *testing.T) {
	cases := []struct {
		env  options.Environment
		want string
	}{
		{options.EnvAstra, "https://db-1-us-east1.apps.astra.datastax.com"},
		{options.EnvAstraDev, "https://db-1-us-east1.apps-dev.astra.datastax.com"},
		{options.EnvAstraTest, "https://db-1-us-east1.apps-test.astra.datastax.com"},
	}
	for _, tc := range cases {
		if got := AstraEndpoint("db-1", "us-east1", tc.env); got != tc.want {
			t.Errorf("%s: endpoint = %s, want %s", tc.env, got, tc.want)
		}
	}
}

func TestDatabaseAdminKeyspaces(t *testing.T) {
	var commands []string
	srv, _ := newDataAPIServer(t, func(command string, args Document) any {
		commands = append(commands, command)
		switch command {
		case "findKeyspaces":
			return Document{"status": Document{"keyspaces": []string{"default_keyspace", "analytics"}}}
		case "createKeyspace", "dropKeyspace":
			return Document{"status": Document{"ok": 1}}
		}
		return Document{"errors": []Document{{"message": "unexpected command " + command}}}
	})

	c, err := New(options.StaticTokenProvider("tok"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()
	db, err := c.DB(srv.URL)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	admin := db.Admin()

	if err := admin.CreateKeyspace(context.Background(), "analytics"); err != nil {
		t.Fatalf("createKeyspace: %v", err)
	}
	names, err := admin.ListKeyspaces(context.Background())
	if err != nil {
		t.Fatalf("listKeyspaces: %v", err)
	}
	if len(names) != 2 || names[1] != "analytics" {
		t.Errorf("keyspaces = %v", names)
	}
	if err := admin.DropKeyspace(context.Background(), "analytics"); err != nil {
		t.Fatalf("dropKeyspace: %v", err)
	}

	// Bad names are rejected before any request.
	if err := admin.CreateKeyspace(context.Background(), "no spaces allowed"); err == nil {
		t.Error("invalid keyspace name must fail")
	}
	want := []string{"createKeyspace", "findKeyspaces", "dropKeyspace"}
	if len(commands) != len(want) {
		t.Fatalf("commands = %v", commands)
	}
	for i, cmd := range want {
		if commands[i] != cmd {
			t.Errorf("command[%d] = %s, want %s", i, commands[i], cmd)
		}
	}
}

func TestCollectionKeyspaceSnapshot(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		writeJSON(t, w, Document{"data": Document{"documents": []Document{}}})
	}))
	defer srv.Close()

	c, err := New(options.StaticTokenProvider("tok"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()
	db, err := c.DB(srv.URL)
	if err != nil {
		t.Fatalf("db: %v", err)
	}

	before, err := db.Collection("things")
	if err != nil {
		t.Fatalf("collection: %v", err)
	}
	if err := db.UseKeyspace("analytics"); err != nil {
		t.Fatalf("useKeyspace: %v", err)
	}
	after, err := db.Collection("things")
	if err != nil {
		t.Fatalf("collection: %v", err)
	}

	if _, _, err := before.FindOne(context.Background(), Document{}, nil); err != nil {
		t.Fatalf("findOne: %v", err)
	}
	if _, _, err := after.FindOne(context.Background(), Document{}, nil); err != nil {
		t.Fatalf("findOne: %v", err)
	}

	if len(paths) != 2 {
		t.Fatalf("paths = %v", paths)
	}
	// Handles keep the keyspace they were created under.
	if paths[0] != "/api/json/v1/default_keyspace/things" {
		t.Errorf("first path = %s", paths[0])
	}
	if paths[1] != "/api/json/v1/analytics/things" {
		t.Errorf("second path = %s", paths[1])
	}
}

func TestClosedClientRejectsCommands(t *testing.T) {
	srv, calls := newDataAPIServer(t, func(string, Document) any {
		return Document{"status": Document{"ok": 1}}
	})
	c, err := New(options.StaticTokenProvider("tok"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	db, err := c.DB(srv.URL)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	coll, err := db.Collection("things")
	if err != nil {
		t.Fatalf("collection: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	_, err = coll.InsertOne(context.Background(), Document{"_id": "x"})
	var closed *apierr.ClientClosedError
	if !errors.As(err, &closed) {
		t.Fatalf("want ClientClosedError, got %v", err)
	}
	if calls.Load() != 0 {
		t.Error("closed client must not reach the wire")
	}
}

func TestCommandEventsBubbleToClientRoot(t *testing.T) {
	srv, _ := newDataAPIServer(t, func(string, Document) any {
		return Document{
			"status": Document{"ok": 1, "warnings": []string{"deprecated option"}},
		}
	})
	c, err := New(options.StaticTokenProvider("tok"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()
	log := &eventLog{}
	log.attach(c)

	db, err := c.DB(srv.URL)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	if _, err := db.Command(context.Background(), "ping", Document{}, nil); err != nil {
		t.Fatalf("command: %v", err)
	}

	if log.count(events.CommandStarted) != 1 ||
		log.count(events.CommandWarnings) != 1 ||
		log.count(events.CommandSucceeded) != 1 {
		t.Errorf("events = %v", log.names)
	}
}

func TestDBRejectsEmptyEndpoint(t *testing.T) {
	c, err := New(options.StaticTokenProvider("tok"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()
	if _, err := c.DB(""); err == nil {
		t.Fatal("empty endpoint must fail")
	}
}

func TestProcessConfigSeedsKeyspaceAndLogging(t *testing.T) {
	t.Setenv("DATALITH_KEYSPACE", "analytics")
	t.Setenv("DATALITH_LOGGING_LEVEL", "debug")
	t.Cleanup(func() { logging.Init(logging.DefaultConfig()) })

	c, err := New(options.StaticTokenProvider("tok"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()

	if got := zerolog.GlobalLevel(); got != zerolog.DebugLevel {
		t.Errorf("global log level = %s, want debug", got)
	}

	db, err := c.DB("https://db.example.com")
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	if db.Keyspace() != "analytics" {
		t.Errorf("keyspace = %q, want the process-config default", db.Keyspace())
	}

	// A database-scope layer still beats the process config.
	ks := "reports"
	db2, err := c.DB("https://db.example.com", options.DBOptions{Keyspace: &ks})
	if err != nil {
		t.Fatalf("db with layer: %v", err)
	}
	if db2.Keyspace() != "reports" {
		t.Errorf("keyspace = %q, explicit layer should win", db2.Keyspace())
	}
}
