// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
client.go - the DataAPIClient entry point

The client owns the fetch transport, the root event emitter, and the merged
client-scope options. Databases and admins spawn from it; closing the client
releases the transport once and makes every spawned handle reject requests.
*/

package client

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/datalith/apierr"
	"github.com/tomtom215/datalith/events"
	"github.com/tomtom215/datalith/internal/config"
	"github.com/tomtom215/datalith/internal/httpcore"
	"github.com/tomtom215/datalith/internal/logging"
	"github.com/tomtom215/datalith/options"
)

// DataAPIClient is the root handle. Safe for concurrent use.
type DataAPIClient struct {
	merged   options.ClientOptions
	resolved options.ResolvedClient

	emitter   *events.Emitter
	transport httpcore.FetchTransport

	fmtMu     sync.RWMutex
	formatter events.Formatter

	closed    atomic.Bool
	closeOnce sync.Once

	// defaultKeyspace is the process-config keyspace, the weakest layer of
	// every database scope spawned from this client.
	defaultKeyspace string
}

// New builds a client from the process-wide defaults (config file and
// environment), the token, and any number of option layers, weakest first.
func New(token options.TokenProvider, layers ...options.ClientOptions) (*DataAPIClient, error) {
	all := make([]options.ClientOptions, 0, len(layers)+2)
	defaultKeyspace := ""
	if cfg, err := config.Load(); err == nil {
		logging.Init(cfg.LoggingOptions())
		defaultKeyspace = cfg.Keyspace
		all = append(all, cfg.ClientOptions())
	} else {
		logging.Warn().Err(err).Msg("ignoring unreadable process configuration")
	}
	all = append(all, options.ClientOptions{Token: token})
	all = append(all, layers...)

	merged := options.ClientMonoid().Concat(all...)
	resolved, err := merged.Parse("client")
	if err != nil {
		return nil, err
	}

	c := &DataAPIClient{
		merged:          merged,
		resolved:        resolved,
		emitter:         events.NewEmitter(nil),
		transport:       httpcore.NewHTTPTransport(),
		formatter:       events.DefaultFormatter,
		defaultKeyspace: defaultKeyspace,
	}
	c.installSinks(c.emitter, resolved.Logging)
	return c, nil
}

// Environment reports the resolved deployment flavor.
func (c *DataAPIClient) Environment() options.Environment {
	return c.resolved.Environment
}

// On registers an event listener at the client root and returns an
// unsubscribe function. Every database and collection event bubbles here.
func (c *DataAPIClient) On(name events.Name, fn events.Listener) func() {
	return c.emitter.On(name, fn)
}

// Emitter exposes the root emitter for advanced listener management.
func (c *DataAPIClient) Emitter() *events.Emitter { return c.emitter }

// SetEventFormatter replaces the console formatter used by stdout/stderr
// logging layers. A nil formatter restores the default.
func (c *DataAPIClient) SetEventFormatter(f events.Formatter) {
	if f == nil {
		f = events.DefaultFormatter
	}
	c.fmtMu.Lock()
	c.formatter = f
	c.fmtMu.Unlock()
}

func (c *DataAPIClient) format(e *events.Event) string {
	c.fmtMu.RLock()
	f := c.formatter
	c.fmtMu.RUnlock()
	return f(e, e.Message())
}

// DB opens a database handle for the given API endpoint
// (e.g. https://{id}-{region}.apps.astra.datastax.com). Option layers merge
// on top of the client scope, weakest first.
func (c *DataAPIClient) DB(endpoint string, layers ...options.DBOptions) (*Database, error) {
	if endpoint == "" {
		return nil, &apierr.ConfigurationError{FieldPath: "endpoint", Message: "endpoint must not be empty"}
	}
	if c.defaultKeyspace != "" {
		ks := c.defaultKeyspace
		layers = append([]options.DBOptions{{Keyspace: &ks}}, layers...)
	}
	merged := options.DBMonoid().Concat(layers...)
	resolved, err := merged.Parse("db")
	if err != nil {
		return nil, err
	}

	token := resolved.Token
	if token == nil {
		token = c.resolved.Token
	}
	providers := append(append([]options.HeaderProvider{}, c.resolved.AdditionalHeaders...), resolved.AdditionalHeaders...)

	emitter := events.NewEmitter(c.emitter)
	exec := httpcore.NewExecutor(httpcore.ExecutorConfig{
		Transport:         c.transport,
		Emitter:           emitter,
		BaseURL:           strings.TrimRight(endpoint, "/") + "/api/json/v1",
		Token:             token,
		HeaderProviders:   providers,
		RequestsPerSecond: c.resolved.RequestsPerSecond,
		Closed:            &c.closed,
	})

	// Re-parse the timeout layers together so database overrides stack on the
	// client scope rather than on the package defaults.
	timeouts, err := options.TimeoutMonoid().Concat(c.merged.Timeouts, merged.Timeouts).Parse("db.timeouts")
	if err != nil {
		return nil, err
	}

	db := &Database{
		client:       c,
		emitter:      emitter,
		exec:         exec,
		endpoint:     strings.TrimRight(endpoint, "/"),
		opts:         resolved,
		optsTimeouts: merged.Timeouts,
		timeouts:     timeouts,
		keyspace:     resolved.Keyspace,
	}
	c.installSinks(emitter, resolved.Logging)
	return db, nil
}

// AdminOptions overrides control-plane defaults.
type AdminOptions struct {
	// Endpoint replaces the environment-derived DevOps API base URL.
	Endpoint string
}

// Admin opens the Astra control-plane facade. Only Astra environments carry
// a DevOps API.
func (c *DataAPIClient) Admin(opts ...AdminOptions) (*AstraAdmin, error) {
	env := c.resolved.Environment
	if !env.IsAstra() {
		return nil, &apierr.ConfigurationError{
			FieldPath: "client.environment",
			Message:   "the DevOps admin surface is only available for astra environments, not " + string(env),
		}
	}
	baseURL := devOpsBaseURL(env)
	for _, o := range opts {
		if o.Endpoint != "" {
			baseURL = o.Endpoint
		}
	}
	emitter := events.NewEmitter(c.emitter)
	devops := httpcore.NewDevOpsClient(httpcore.DevOpsConfig{
		Transport: c.transport,
		Emitter:   emitter,
		BaseURL:   baseURL,
		Token:     c.resolved.Token,
	})
	return &AstraAdmin{
		client:   c,
		devops:   devops,
		emitter:  emitter,
		env:      env,
		timeouts: c.resolved.Timeouts,
	}, nil
}

// Close shuts the client down: further requests from any spawned handle fail
// with ClientClosedError and the transport's sockets are released. Safe to
// call more than once.
func (c *DataAPIClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.transport.Close()
	})
	return err
}

// devOpsBaseURL maps an Astra environment to its control-plane endpoint.
func devOpsBaseURL(env options.Environment) string {
	switch env {
	case options.EnvAstraDev:
		return "https://api.dev.cloud.datastax.com/v2"
	case options.EnvAstraTest:
		return "https://api.test.cloud.datastax.com/v2"
	}
	return "https://api.astra.datastax.com/v2"
}
