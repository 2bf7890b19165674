// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
executor.go - Data API command execution

One Executor serves a whole client; it is safe for concurrent use. Per-call
state (timeout manager, request descriptor, retry counters) lives on the
stack. Commands POST a single-entry envelope {commandName: args} and the
response envelope is split into status/data/errors here, with the error
taxonomy applied before anything reaches a caller.

Emission order per logical command: started, then warnings (if any), then
exactly one of succeeded or failed. Retries reuse the request ID and never
emit extra terminal events.
*/

package httpcore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tomtom215/datalith/apierr"
	"github.com/tomtom215/datalith/events"
	"github.com/tomtom215/datalith/internal/logging"
	"github.com/tomtom215/datalith/internal/metrics"
	"github.com/tomtom215/datalith/options"
)

// dataAPIMaxRetries bounds retry attempts for idempotent Data API commands.
const dataAPIMaxRetries = 2

// RawResponse is the split response envelope.
type RawResponse struct {
	Status map[string]any
	Data   map[string]any
	Errors []apierr.ErrorDescriptor

	// Raw is the full decoded body for codecs that need sibling context.
	Raw map[string]any

	// Body is the undecoded response body. Table deserialization re-reads it
	// to recover the key order of primaryKeySchema, which Go maps drop.
	Body []byte

	// ExtraLogInfo is transport-supplied detail, carried onto events.
	ExtraLogInfo map[string]string
}

// Warnings extracts status.warnings as strings, when present.
func (r *RawResponse) Warnings() []string {
	raw, ok := r.Status["warnings"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, w := range raw {
		switch t := w.(type) {
		case string:
			out = append(out, t)
		case map[string]any:
			if msg, ok := t["message"].(string); ok {
				out = append(out, msg)
			}
		}
	}
	return out
}

// ExecutorConfig wires an Executor.
type ExecutorConfig struct {
	Transport FetchTransport
	Emitter   *events.Emitter
	BaseURL   string // e.g. https://{id}-{region}.apps.astra.datastax.com/api/json/v1

	Token           options.TokenProvider
	HeaderProviders []options.HeaderProvider

	// RequestsPerSecond > 0 installs a client-wide throttle.
	RequestsPerSecond float64

	// Closed is the shared shutdown flag; a closed client rejects requests.
	Closed *atomic.Bool
}

// Executor issues Data API commands.
type Executor struct {
	transport FetchTransport
	emitter   *events.Emitter
	baseURL   string
	token     options.TokenProvider
	providers []options.HeaderProvider
	limiter   *rate.Limiter
	closed    *atomic.Bool
}

// NewExecutor builds an Executor from its configuration.
func NewExecutor(cfg ExecutorConfig) *Executor {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	closed := cfg.Closed
	if closed == nil {
		closed = &atomic.Bool{}
	}
	return &Executor{
		transport: cfg.Transport,
		emitter:   cfg.Emitter,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		providers: cfg.HeaderProviders,
		limiter:   limiter,
		closed:    closed,
	}
}

// ExecuteOptions describes one command.
type ExecuteOptions struct {
	Keyspace string
	Source   string // collection or table; empty for keyspace-level commands
	Command  string
	Args     map[string]any

	// Idempotent marks the command safe to retry on transient failures.
	// Writes stay false unless the caller can prove at-most-once semantics.
	Idempotent bool

	// ExtraHeaders append after the client-scope providers.
	ExtraHeaders []options.HeaderProvider

	Timeout *TimeoutManager
}

func (e *Executor) url(opts *ExecuteOptions) string {
	parts := []string{e.baseURL}
	if opts.Keyspace != "" {
		parts = append(parts, opts.Keyspace)
	}
	if opts.Source != "" {
		parts = append(parts, opts.Source)
	}
	return strings.Join(parts, "/")
}

// Execute runs one Data API command to completion, including retries.
func (e *Executor) Execute(ctx context.Context, opts *ExecuteOptions) (*RawResponse, error) {
	if e.closed.Load() {
		return nil, &apierr.ClientClosedError{}
	}

	// Request-ID generation costs a UUID; skip it when nobody listens.
	requestID := ""
	if e.emitter != nil && (e.emitter.HasListeners(events.CommandStarted) ||
		e.emitter.HasListeners(events.CommandSucceeded) ||
		e.emitter.HasListeners(events.CommandFailed) ||
		e.emitter.HasListeners(events.CommandWarnings)) {
		requestID = uuid.NewString()
	}

	started := time.Now()
	base := events.Event{
		RequestID:   requestID,
		CommandName: opts.Command,
		Keyspace:    opts.Keyspace,
		Source:      opts.Source,
		URL:         e.url(opts),
	}
	e.emit(events.CommandStarted, base)

	resp, err := e.executeWithRetries(ctx, opts)

	if err == nil {
		if warnings := resp.Warnings(); len(warnings) > 0 {
			ev := base
			ev.Warnings = warnings
			ev.ExtraLogInfo = resp.ExtraLogInfo
			e.emit(events.CommandWarnings, ev)
		}
	}

	terminal := base
	terminal.Duration = time.Since(started)
	if err != nil {
		terminal.Err = err
		e.emit(events.CommandFailed, terminal)
		metrics.ObserveCommand("data", opts.Command, started, outcomeOf(err))
		return nil, err
	}
	terminal.ExtraLogInfo = resp.ExtraLogInfo
	e.emit(events.CommandSucceeded, terminal)
	metrics.ObserveCommand("data", opts.Command, started, "success")
	return resp, nil
}

func (e *Executor) executeWithRetries(ctx context.Context, opts *ExecuteOptions) (*RawResponse, error) {
	body, err := encodeEnvelope(opts.Command, opts.Args)
	if err != nil {
		return nil, err
	}

	headers, err := resolveHeaders(ctx, e.token, append(append([]options.HeaderProvider{}, e.providers...), opts.ExtraHeaders...))
	if err != nil {
		return nil, &apierr.ConfigurationError{FieldPath: "headers", Message: err.Error()}
	}

	backoff := 250 * time.Millisecond
	var lastErr error
	for attempt := 0; ; attempt++ {
		remaining, mkTimeout, terr := opts.Timeout.Advance()
		if terr != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, terr
		}

		if e.limiter != nil {
			if err := e.waitLimiter(ctx, remaining); err != nil {
				return nil, err
			}
		}

		resp, err := e.attempt(ctx, opts, body, headers, remaining, mkTimeout)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !opts.Idempotent || attempt >= dataAPIMaxRetries || !apierr.IsRetryable(err) {
			return nil, err
		}
		wait := apierr.JitteredBackoff(backoff)
		if wait >= opts.Timeout.Remaining() {
			return nil, err
		}
		metrics.RetryAttempts.WithLabelValues("data", retryReason(err)).Inc()
		logging.Debug().Str("command", opts.Command).Int("attempt", attempt+1).Dur("backoff", wait).Msg("retrying idempotent command")
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

func (e *Executor) attempt(ctx context.Context, opts *ExecuteOptions, body []byte, headers map[string]string, budget time.Duration, mkTimeout func() error) (*RawResponse, error) {
	fetchResp, err := e.transport.Fetch(ctx, &FetchRequest{
		URL:            e.url(opts),
		Method:         "POST",
		Body:           body,
		Headers:        headers,
		Timeout:        budget,
		MkTimeoutError: mkTimeout,
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveHTTPStatus("data", fetchResp.Status)
	return parseDataAPIResponse(fetchResp, opts)
}

// parseDataAPIResponse applies the error taxonomy to one HTTP exchange.
func parseDataAPIResponse(resp *FetchResponse, opts *ExecuteOptions) (*RawResponse, error) {
	if resp.Status == 401 {
		return nil, &apierr.AuthenticationError{Status: resp.Status, Body: snapshot(resp.Body)}
	}
	if resp.Status < 200 || resp.Status > 299 {
		// The auth sentinel wins over the generic HTTP error at any status.
		if bytes.Contains(resp.Body, []byte(apierr.AuthSentinel)) {
			return nil, &apierr.AuthenticationError{Status: resp.Status, Body: snapshot(resp.Body)}
		}
		return nil, &apierr.HTTPError{
			Status:     resp.Status,
			StatusText: resp.StatusText,
			Body:       snapshot(resp.Body),
			URL:        resp.URL,
		}
	}

	raw := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, &apierr.HTTPError{
			Status:     resp.Status,
			StatusText: "unparseable response body",
			Body:       snapshot(resp.Body),
			URL:        resp.URL,
		}
	}

	out := &RawResponse{Raw: raw, Body: resp.Body, ExtraLogInfo: resp.ExtraLogInfo}
	out.Status, _ = raw["status"].(map[string]any)
	out.Data, _ = raw["data"].(map[string]any)
	if rawErrs, ok := raw["errors"].([]any); ok {
		for _, re := range rawErrs {
			m, ok := re.(map[string]any)
			if !ok {
				continue
			}
			desc := apierr.ErrorDescriptor{}
			desc.ErrorCode, _ = m["errorCode"].(string)
			desc.Message, _ = m["message"].(string)
			desc.Attributes, _ = m["attributes"].(map[string]any)
			out.Errors = append(out.Errors, desc)
		}
	}

	if len(out.Errors) > 0 {
		first := out.Errors[0]
		if first.Message == apierr.AuthSentinel {
			return nil, &apierr.AuthenticationError{Status: resp.Status, Body: snapshot(resp.Body)}
		}
		respErr := &apierr.ResponseError{Errors: out.Errors, PartialResult: partialResult(out)}
		if first.ErrorCode == apierr.ErrorCodeCollectionNotExist {
			return nil, &apierr.CollectionNotFoundError{
				Keyspace:   opts.Keyspace,
				Collection: opts.Source,
				Response:   respErr,
			}
		}
		return nil, respErr
	}
	return out, nil
}

// partialResult synthesizes server-completed work that accompanied an error,
// e.g. the insertedIds of a partially applied insertMany.
func partialResult(r *RawResponse) any {
	if r.Status == nil {
		return nil
	}
	if ids, ok := r.Status["insertedIds"]; ok {
		return map[string]any{"insertedIds": ids}
	}
	return nil
}

// encodeEnvelope renders {command: args}. Arbitrary-precision values arrive
// as json.Number tokens, which goccy emits verbatim without float rounding,
// so one encoder serves both flavors of envelope.
func encodeEnvelope(command string, args map[string]any) ([]byte, error) {
	if args == nil {
		args = map[string]any{}
	}
	body, err := json.Marshal(map[string]any{command: args})
	if err != nil {
		return nil, &apierr.SerializationError{Message: fmt.Sprintf("cannot encode %s envelope", command), Err: err}
	}
	return body, nil
}

func (e *Executor) waitLimiter(ctx context.Context, budget time.Duration) error {
	waitCtx := ctx
	if budget > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	if err := e.limiter.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return &apierr.CancelledError{Err: ctx.Err()}
		}
		return &apierr.TimeoutError{Category: apierr.TimeoutRequest, Budget: budget}
	}
	return nil
}

func (e *Executor) emit(name events.Name, ev events.Event) {
	if e.emitter == nil {
		return
	}
	ev.Name = name
	e.emitter.Emit(&ev)
}

// snapshot bounds error bodies kept on error values.
func snapshot(body []byte) []byte {
	const maxSnap = 8 << 10
	if len(body) <= maxSnap {
		return body
	}
	return body[:maxSnap]
}

func outcomeOf(err error) string {
	var te *apierr.TimeoutError
	if errors.As(err, &te) {
		return "timeout"
	}
	return "error"
}

func retryReason(err error) string {
	var he *apierr.HTTPError
	if errors.As(err, &he) {
		if he.Status == 429 {
			return "http_429"
		}
		return "http_5xx"
	}
	return "transport"
}

// sleepCtx sleeps with a reused timer, honoring cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return &apierr.CancelledError{Err: ctx.Err()}
	case <-timer.C:
		return nil
	}
}
