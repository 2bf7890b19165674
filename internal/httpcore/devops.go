// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
devops.go - DevOps API requests and long-running polls

DevOps requests go through a circuit breaker and retry transient failures with
capped exponential backoff plus jitter. All requests are pinned to HTTP/1.x;
the DevOps gateway rejects HTTP/2.

Long-running operations (database create/terminate) follow the async pattern:
the initial POST answers 201/202 with a Location header naming the resource,
then the status endpoint is polled until the resource reaches the target
status. Statuses outside the legal transitional set are protocol violations.
*/

package httpcore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/datalith/apierr"
	"github.com/tomtom215/datalith/events"
	"github.com/tomtom215/datalith/internal/logging"
	"github.com/tomtom215/datalith/internal/metrics"
	"github.com/tomtom215/datalith/options"
)

// DefaultPollInterval paces long-running status polls.
const DefaultPollInterval = 10 * time.Second

// devOpsMaxRetries bounds transient-failure retries per request.
const devOpsMaxRetries = 3

// DevOpsConfig wires a DevOpsClient.
type DevOpsConfig struct {
	Transport FetchTransport
	Emitter   *events.Emitter
	BaseURL   string // e.g. https://api.astra.datastax.com/v2
	Token     options.TokenProvider

	// BreakerName labels breaker metrics; defaults to "devops-api".
	BreakerName string
}

// DevOpsClient issues DevOps API requests. Safe for concurrent use.
type DevOpsClient struct {
	transport FetchTransport
	emitter   *events.Emitter
	baseURL   string
	token     options.TokenProvider
	breaker   *gobreaker.CircuitBreaker[*FetchResponse]
	name      string
}

// NewDevOpsClient builds the client with its circuit breaker. The breaker
// opens after a 60% failure rate across at least 10 requests and probes
// recovery after two minutes.
func NewDevOpsClient(cfg DevOpsConfig) *DevOpsClient {
	name := cfg.BreakerName
	if name == "" {
		name = "devops-api"
	}
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[*FetchResponse](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &DevOpsClient{
		transport: cfg.Transport,
		emitter:   cfg.Emitter,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		breaker:   cb,
		name:      name,
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}

// DevOpsRequest describes one REST call.
type DevOpsRequest struct {
	Method string // GET, POST, DELETE
	Path   string // e.g. /databases/{id}
	Body   any
	Query  string // raw query string without "?"
}

func (d *DevOpsClient) url(req *DevOpsRequest) string {
	u := d.baseURL + req.Path
	if req.Query != "" {
		u += "?" + req.Query
	}
	return u
}

// Request performs one DevOps call with breaker protection and retries,
// wrapped in started/succeeded/failed admin events.
func (d *DevOpsClient) Request(ctx context.Context, req *DevOpsRequest, tm *TimeoutManager) (*FetchResponse, error) {
	requestID := d.adminRequestID()
	started := time.Now()
	base := events.Event{RequestID: requestID, Method: req.Method, URL: d.url(req)}
	d.emit(events.AdminCommandStarted, base)

	resp, err := d.request(ctx, req, tm)

	terminal := base
	terminal.Duration = time.Since(started)
	if err != nil {
		terminal.Err = err
		d.emit(events.AdminCommandFailed, terminal)
		metrics.ObserveCommand("devops", req.Method+" "+req.Path, started, outcomeOf(err))
		return nil, err
	}
	d.emit(events.AdminCommandSucceeded, terminal)
	metrics.ObserveCommand("devops", req.Method+" "+req.Path, started, "success")
	return resp, nil
}

// request is the un-evented exchange, shared with the poll loop.
func (d *DevOpsClient) request(ctx context.Context, req *DevOpsRequest, tm *TimeoutManager) (*FetchResponse, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, &apierr.SerializationError{Message: "cannot encode DevOps request body", Err: err}
		}
	}

	// DevOps authenticates with a bearer header rather than Token.
	headers, err := resolveHeaders(ctx, nil, nil)
	if err != nil {
		return nil, &apierr.ConfigurationError{FieldPath: "headers", Message: err.Error()}
	}
	if d.token != nil {
		tok, terr := d.token.Token(ctx)
		if terr != nil {
			return nil, &apierr.ConfigurationError{FieldPath: "token", Message: terr.Error()}
		}
		if tok != "" {
			headers["Authorization"] = "Bearer " + tok
		}
	}

	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 0; ; attempt++ {
		remaining, mkTimeout, terr := tm.Advance()
		if terr != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, terr
		}

		resp, err := d.breaker.Execute(func() (*FetchResponse, error) {
			return d.fetch(ctx, req, body, headers, remaining, mkTimeout)
		})
		if err == nil {
			metrics.CircuitBreakerRequests.WithLabelValues(d.name, "success").Inc()
			return resp, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(d.name, "rejected").Inc()
			return nil, &apierr.TransportError{URL: d.url(req), Err: err}
		}
		metrics.CircuitBreakerRequests.WithLabelValues(d.name, "failure").Inc()
		lastErr = err

		if attempt >= devOpsMaxRetries || !apierr.IsRetryable(err) {
			return nil, err
		}
		wait := apierr.JitteredBackoff(backoff)
		if wait >= tm.Remaining() {
			return nil, err
		}
		metrics.RetryAttempts.WithLabelValues("devops", retryReason(err)).Inc()
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

// fetch performs the HTTP exchange and maps non-2xx statuses. 401 handling
// precedes the generic HTTPError, same as the Data API side.
func (d *DevOpsClient) fetch(ctx context.Context, req *DevOpsRequest, body []byte, headers map[string]string, budget time.Duration, mkTimeout func() error) (*FetchResponse, error) {
	resp, err := d.transport.Fetch(ctx, &FetchRequest{
		URL:            d.url(req),
		Method:         req.Method,
		Body:           body,
		Headers:        headers,
		ForceHTTP1:     true,
		Timeout:        budget,
		MkTimeoutError: mkTimeout,
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveHTTPStatus("devops", resp.Status)
	if resp.Status == 401 {
		return nil, &apierr.AuthenticationError{Status: resp.Status, Body: snapshot(resp.Body)}
	}
	if resp.Status < 200 || resp.Status > 299 {
		return nil, &apierr.HTTPError{
			Status:     resp.Status,
			StatusText: resp.StatusText,
			Body:       snapshot(resp.Body),
			URL:        resp.URL,
		}
	}
	return resp, nil
}

// DecodeBody unmarshals a DevOps response body into out, preserving numeric
// tokens.
func DecodeBody(resp *FetchResponse, out any) error {
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &apierr.HTTPError{
			Status:     resp.Status,
			StatusText: "unparseable response body",
			Body:       snapshot(resp.Body),
			URL:        resp.URL,
		}
	}
	return nil
}

// LongRunningInfo describes the poll phase of an async DevOps operation.
type LongRunningInfo struct {
	// Resource names what is being provisioned, for events and errors.
	Resource string

	// Blocking=false returns right after the initial request.
	Blocking bool

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration

	// ExtractID pulls the resource ID from the initial response. Defaults to
	// the last segment of the Location header; a missing header is an
	// HTTPError (the operation cannot be tracked).
	ExtractID func(resp *FetchResponse) (string, error)

	// StatusPath builds the poll path from the ID, e.g. /databases/{id}.
	StatusPath func(id string) string

	// Target is the status that completes the operation; LegalStates are the
	// transitional statuses polling may observe. Anything else is fatal.
	Target      string
	LegalStates []string
}

// RequestLongRunning performs the initial request and, when blocking, polls
// the status endpoint until the target status. The returned response is the
// last status GET (or the initial response when not blocking); the returned
// string is the resource ID.
func (d *DevOpsClient) RequestLongRunning(ctx context.Context, req *DevOpsRequest, lr *LongRunningInfo, tm *TimeoutManager) (*FetchResponse, string, error) {
	requestID := d.adminRequestID()
	started := time.Now()
	base := events.Event{RequestID: requestID, Method: req.Method, URL: d.url(req)}
	d.emit(events.AdminCommandStarted, base)

	resp, id, err := d.longRunning(ctx, req, lr, tm, base, started)

	terminal := base
	terminal.Duration = time.Since(started)
	if err != nil {
		terminal.Err = err
		d.emit(events.AdminCommandFailed, terminal)
		metrics.LongRunningDuration.WithLabelValues(lr.Resource, outcomeOf(err)).Observe(time.Since(started).Seconds())
		return nil, "", err
	}
	d.emit(events.AdminCommandSucceeded, terminal)
	metrics.LongRunningDuration.WithLabelValues(lr.Resource, "success").Observe(time.Since(started).Seconds())
	return resp, id, nil
}

func (d *DevOpsClient) longRunning(ctx context.Context, req *DevOpsRequest, lr *LongRunningInfo, tm *TimeoutManager, base events.Event, started time.Time) (*FetchResponse, string, error) {
	resp, err := d.request(ctx, req, tm)
	if err != nil {
		return nil, "", err
	}

	extract := lr.ExtractID
	if extract == nil {
		extract = extractLocationID
	}
	id, err := extract(resp)
	if err != nil {
		return nil, "", err
	}

	if !lr.Blocking {
		return resp, id, nil
	}

	interval := lr.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	statusReq := &DevOpsRequest{Method: "GET", Path: lr.StatusPath(id)}
	for iteration := 1; ; iteration++ {
		if _, _, terr := tm.Advance(); terr != nil {
			return nil, "", terr
		}
		if err := sleepCtx(ctx, interval); err != nil {
			return nil, "", err
		}

		pollEv := base
		pollEv.PollIteration = iteration
		pollEv.PollElapsed = time.Since(started)
		d.emit(events.AdminCommandPolling, pollEv)
		metrics.LongRunningPolls.WithLabelValues(lr.Resource).Inc()

		resp, err = d.request(ctx, statusReq, tm)
		if err != nil {
			return nil, "", err
		}

		status, err := extractStatus(resp)
		if err != nil {
			return nil, "", err
		}
		if status == lr.Target {
			return resp, id, nil
		}
		if !contains(lr.LegalStates, status) {
			return nil, "", &apierr.OperationNotAllowedError{
				Resource:    lr.Resource + "/" + id,
				Status:      status,
				LegalStates: lr.LegalStates,
				Target:      lr.Target,
			}
		}
		logging.Debug().Str("resource", lr.Resource).Str("id", id).Str("status", status).Int("iteration", iteration).Msg("awaiting target status")
	}
}

// extractLocationID takes the trailing segment of the Location header.
func extractLocationID(resp *FetchResponse) (string, error) {
	loc := resp.Headers["Location"]
	if loc == "" {
		loc = resp.Headers["location"]
	}
	if loc == "" {
		return "", &apierr.HTTPError{
			Status:     resp.Status,
			StatusText: "async response is missing the Location header",
			URL:        resp.URL,
		}
	}
	parts := strings.Split(strings.TrimRight(loc, "/"), "/")
	return parts[len(parts)-1], nil
}

func extractStatus(resp *FetchResponse) (string, error) {
	var body struct {
		Status string `json:"status"`
	}
	if err := DecodeBody(resp, &body); err != nil {
		return "", err
	}
	if body.Status == "" {
		return "", fmt.Errorf("status response from %s carries no status field", resp.URL)
	}
	return body.Status, nil
}

func contains(list []string, s string) bool {
	for _, el := range list {
		if el == s {
			return true
		}
	}
	return false
}

func (d *DevOpsClient) adminRequestID() string {
	if d.emitter == nil {
		return ""
	}
	for _, name := range []events.Name{
		events.AdminCommandStarted, events.AdminCommandSucceeded,
		events.AdminCommandFailed, events.AdminCommandPolling, events.AdminCommandWarnings,
	} {
		if d.emitter.HasListeners(name) {
			return uuid.NewString()
		}
	}
	return ""
}

func (d *DevOpsClient) emit(name events.Name, ev events.Event) {
	if d.emitter == nil {
		return
	}
	ev.Name = name
	d.emitter.Emit(&ev)
}
