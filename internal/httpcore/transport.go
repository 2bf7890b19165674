// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
transport.go - the pluggable fetch layer

FetchTransport is the seam between the execution core and the network. The
default implementation wraps net/http with two underlying clients: the normal
one negotiates HTTP/2, the second is pinned to HTTP/1.x for requests that set
ForceHTTP1. Transports never error on non-2xx; the core owns status handling.
*/

package httpcore

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tomtom215/datalith/apierr"
)

// maxResponseBody bounds how much of a response is slurped into memory.
const maxResponseBody = 20 << 20

// FetchRequest describes one HTTP exchange.
type FetchRequest struct {
	URL     string
	Method  string // GET, POST, or DELETE
	Body    []byte
	Headers map[string]string

	// ForceHTTP1 pins the exchange to HTTP/1.x.
	ForceHTTP1 bool

	// Timeout caps the exchange; when it fires the transport returns
	// MkTimeoutError() rather than a raw context error.
	Timeout        time.Duration
	MkTimeoutError func() error
}

// FetchResponse is the transport-level view of a response. Non-2xx statuses
// are returned here, never as errors.
type FetchResponse struct {
	Status      int
	StatusText  string
	Body        []byte
	Headers     map[string]string
	HTTPVersion int // 1 or 2
	URL         string

	// ExtraLogInfo lets a transport attach detail (proxy hop, cache state)
	// that is forwarded onto the command's lifecycle events.
	ExtraLogInfo map[string]string
}

// FetchTransport is the pluggable network seam. Implementations holding
// sockets release them in Close; the core calls it exactly once.
type FetchTransport interface {
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResponse, error)
	Close() error
}

// HTTPTransport is the net/http-backed default.
type HTTPTransport struct {
	client    *http.Client
	h1client  *http.Client
	closeOnce sync.Once
}

var _ FetchTransport = (*HTTPTransport)(nil)

// NewHTTPTransport builds the default transport with sane connection pooling.
func NewHTTPTransport() *HTTPTransport {
	base := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	h1 := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		// Empty TLSNextProto disables HTTP/2 negotiation entirely.
		TLSNextProto: map[string]func(string, *tls.Conn) http.RoundTripper{},
	}
	return &HTTPTransport{
		client:   &http.Client{Transport: base},
		h1client: &http.Client{Transport: h1},
	}
}

// Fetch performs the exchange. Timeouts surface as req.MkTimeoutError();
// caller cancellation surfaces as a CancelledError; anything else the network
// refused becomes a TransportError.
func (t *HTTPTransport) Fetch(ctx context.Context, req *FetchRequest) (*FetchResponse, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &apierr.TransportError{URL: req.URL, Err: err}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	client := t.client
	if req.ForceHTTP1 {
		client = t.h1client
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, t.translateErr(ctx, req, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, t.translateErr(ctx, req, err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}

	version := 1
	if resp.ProtoMajor == 2 {
		version = 2
	}
	return &FetchResponse{
		Status:      resp.StatusCode,
		StatusText:  http.StatusText(resp.StatusCode),
		Body:        data,
		Headers:     headers,
		HTTPVersion: version,
		URL:         req.URL,
	}, nil
}

func (t *HTTPTransport) translateErr(ctx context.Context, req *FetchRequest, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		if req.MkTimeoutError != nil {
			return req.MkTimeoutError()
		}
		return &apierr.TimeoutError{Category: apierr.TimeoutRequest, Budget: req.Timeout}
	case errors.Is(ctx.Err(), context.Canceled):
		return &apierr.CancelledError{Err: err}
	default:
		return &apierr.TransportError{URL: req.URL, Err: fmt.Errorf("fetch failed: %w", err)}
	}
}

// Close releases pooled connections. Safe to call more than once.
func (t *HTTPTransport) Close() error {
	t.closeOnce.Do(func() {
		t.client.CloseIdleConnections()
		t.h1client.CloseIdleConnections()
	})
	return nil
}
