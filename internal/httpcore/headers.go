// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package httpcore

import (
	"context"
	"fmt"

	"github.com/tomtom215/datalith/options"
)

// UserAgent identifies the client on every request.
const UserAgent = "datalith-go"

// resolveHeaders assembles the request header set: the JSON base, the token,
// then each provider in order. Later providers win on name collision, so
// stronger scopes append after weaker ones. Each provider is resolved exactly
// once per request.
func resolveHeaders(ctx context.Context, token options.TokenProvider, providers []options.HeaderProvider) (map[string]string, error) {
	headers := map[string]string{
		"Content-Type": "application/json",
		"User-Agent":   UserAgent,
	}
	if token != nil {
		tok, err := token.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving token: %w", err)
		}
		if tok != "" {
			headers["Token"] = tok
		}
	}
	for _, p := range providers {
		if p == nil {
			continue
		}
		h, err := p.Headers(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving headers: %w", err)
		}
		for k, v := range h {
			headers[k] = v
		}
	}
	return headers, nil
}
