// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
providers.go - token and header providers

The HTTP core resolves a layered set of providers once per request: the token
provider fills the Token header, the embedding and reranking key providers
fill their vendor headers, and static headers come last. Providers may do
asynchronous work (e.g. refresh a short-lived credential); resolution happens
exactly once per request on the requesting goroutine.
*/

package options

import (
	"context"
	"encoding/base64"
	"fmt"
)

// TokenProvider yields the value for the Token header. Implementations may
// block (network refresh); the context bounds that work.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenProvider wraps a fixed token string.
type StaticTokenProvider string

func (s StaticTokenProvider) Token(context.Context) (string, error) {
	return string(s), nil
}

// UsernamePasswordTokenProvider derives a "Cassandra:b64:b64" token from
// plain credentials, the form DSE and HCD deployments accept.
type UsernamePasswordTokenProvider struct {
	Username string
	Password string
}

func (p UsernamePasswordTokenProvider) Token(context.Context) (string, error) {
	if p.Username == "" || p.Password == "" {
		return "", fmt.Errorf("username and password must both be set")
	}
	return fmt.Sprintf("Cassandra:%s:%s",
		base64.StdEncoding.EncodeToString([]byte(p.Username)),
		base64.StdEncoding.EncodeToString([]byte(p.Password))), nil
}

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// HeaderProvider yields a set of headers to merge into a request.
// Later providers override earlier ones on name collision.
type HeaderProvider interface {
	Headers(ctx context.Context) (map[string]string, error)
}

// StaticHeaders is a fixed header set.
type StaticHeaders map[string]string

func (h StaticHeaders) Headers(context.Context) (map[string]string, error) {
	return h, nil
}

// HeaderFunc adapts a function to HeaderProvider.
type HeaderFunc func(ctx context.Context) (map[string]string, error)

func (f HeaderFunc) Headers(ctx context.Context) (map[string]string, error) { return f(ctx) }

// EmbeddingAPIKey is the single-header embedding credential form.
type EmbeddingAPIKey string

func (k EmbeddingAPIKey) Headers(context.Context) (map[string]string, error) {
	if k == "" {
		return nil, nil
	}
	return map[string]string{"x-embedding-api-key": string(k)}, nil
}

// AWSEmbeddingHeaders is the two-header embedding credential form used by
// AWS-hosted embedding providers.
type AWSEmbeddingHeaders struct {
	AccessKeyID     string
	SecretAccessKey string
}

func (k AWSEmbeddingHeaders) Headers(context.Context) (map[string]string, error) {
	if k.AccessKeyID == "" || k.SecretAccessKey == "" {
		return nil, fmt.Errorf("AWS embedding headers require both access key id and secret access key")
	}
	return map[string]string{
		"x-embedding-access-id": k.AccessKeyID,
		"x-embedding-secret-id": k.SecretAccessKey,
	}, nil
}

// RerankingAPIKey is the reranking credential header.
type RerankingAPIKey string

func (k RerankingAPIKey) Headers(context.Context) (map[string]string, error) {
	if k == "" {
		return nil, nil
	}
	return map[string]string{"reranking-api-key": string(k)}, nil
}

// HeaderProviderMonoid accumulates providers weakest-first; the HTTP core
// applies them in order so stronger scopes win on collision.
func HeaderProviderMonoid() Monoid[[]HeaderProvider] {
	return Array[HeaderProvider]()
}

// TokenMonoid picks the strongest configured token provider.
func TokenMonoid() Monoid[TokenProvider] {
	return NewMonoid(
		func() TokenProvider { return nil },
		func(layers []TokenProvider) TokenProvider {
			var out TokenProvider
			for _, l := range layers {
				if l != nil {
					out = l
				}
			}
			return out
		},
	)
}
