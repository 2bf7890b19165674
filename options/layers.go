// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
layers.go - the option records for each configuration scope

Scopes merge weakest-first: process defaults -> client -> database ->
collection/table -> per-call. Each scope contributes one record; the record
monoids below define the merge. Per-call records are method-specific and live
with their methods in the client package.
*/

package options

import (
	"github.com/tomtom215/datalith/apierr"
)

// Environment names the deployment flavor; it selects endpoint derivation and
// which admin surface is available.
type Environment string

const (
	EnvAstra     Environment = "astra"
	EnvAstraDev  Environment = "astra-dev"
	EnvAstraTest Environment = "astra-test"
	EnvDSE       Environment = "dse"
	EnvHCD       Environment = "hcd"
	EnvOther     Environment = "other"
)

// DomainSuffix returns the Astra endpoint suffix fragment for the
// environment: "" for prod, "-dev" and "-test" for the others.
func (e Environment) DomainSuffix() string {
	switch e {
	case EnvAstraDev:
		return "-dev"
	case EnvAstraTest:
		return "-test"
	}
	return ""
}

// IsAstra reports whether the environment has a DevOps control plane.
func (e Environment) IsAstra() bool {
	switch e {
	case EnvAstra, EnvAstraDev, EnvAstraTest:
		return true
	}
	return false
}

// ClientOptions is the weakest user-supplied scope, set at client construction.
type ClientOptions struct {
	Environment       *Environment `validate:"omitempty,oneof=astra astra-dev astra-test dse hcd other"`
	Token             TokenProvider
	AdditionalHeaders []HeaderProvider
	Logging           []LoggingLayer
	Timeouts          TimeoutOptions

	// RequestsPerSecond, when set, throttles outgoing requests client-wide.
	RequestsPerSecond *float64 `validate:"omitempty,gt=0"`
}

// ClientMonoid merges ClientOptions layers.
func ClientMonoid() Monoid[ClientOptions] {
	return NewMonoid(
		func() ClientOptions { return ClientOptions{} },
		func(layers []ClientOptions) ClientOptions {
			var out ClientOptions
			tm := TimeoutMonoid()
			for _, l := range layers {
				out.Environment = Rightmost(out.Environment, l.Environment)
				out.Token = TokenMonoid().Concat(out.Token, l.Token)
				out.AdditionalHeaders = Appending(out.AdditionalHeaders, l.AdditionalHeaders)
				out.Logging = Prepending(out.Logging, l.Logging)
				out.Timeouts = tm.Concat(out.Timeouts, l.Timeouts)
				out.RequestsPerSecond = Rightmost(out.RequestsPerSecond, l.RequestsPerSecond)
			}
			return out
		},
	)
}

// ResolvedClient is the parsed, immutable client configuration.
type ResolvedClient struct {
	Environment       Environment
	Token             TokenProvider
	AdditionalHeaders []HeaderProvider
	Logging           []ResolvedLoggingLayer
	Timeouts          ResolvedTimeouts
	RequestsPerSecond float64 // 0 = unthrottled
}

// Parse validates the merged record and fills defaults
// (environment defaults to astra).
func (o ClientOptions) Parse(fieldPath string) (ResolvedClient, error) {
	if err := validateStruct(o, fieldPath); err != nil {
		return ResolvedClient{}, err
	}
	out := ResolvedClient{Environment: EnvAstra, Token: o.Token, AdditionalHeaders: o.AdditionalHeaders}
	if o.Environment != nil {
		out.Environment = *o.Environment
	}
	var err error
	if out.Logging, err = ParseLoggingLayers(o.Logging, joinPath(fieldPath, "logging")); err != nil {
		return ResolvedClient{}, err
	}
	if out.Timeouts, err = o.Timeouts.Parse(joinPath(fieldPath, "timeouts")); err != nil {
		return ResolvedClient{}, err
	}
	if o.RequestsPerSecond != nil {
		out.RequestsPerSecond = *o.RequestsPerSecond
	}
	return out, nil
}

// DBOptions is the database scope.
type DBOptions struct {
	Keyspace          *string
	Token             TokenProvider
	AdditionalHeaders []HeaderProvider
	EmbeddingAPIKey   HeaderProvider
	RerankingAPIKey   HeaderProvider
	Logging           []LoggingLayer
	Timeouts          TimeoutOptions
}

// DBMonoid merges DBOptions layers.
func DBMonoid() Monoid[DBOptions] {
	return NewMonoid(
		func() DBOptions { return DBOptions{} },
		func(layers []DBOptions) DBOptions {
			var out DBOptions
			tm := TimeoutMonoid()
			for _, l := range layers {
				out.Keyspace = Rightmost(out.Keyspace, l.Keyspace)
				out.Token = TokenMonoid().Concat(out.Token, l.Token)
				out.AdditionalHeaders = Appending(out.AdditionalHeaders, l.AdditionalHeaders)
				if l.EmbeddingAPIKey != nil {
					out.EmbeddingAPIKey = l.EmbeddingAPIKey
				}
				if l.RerankingAPIKey != nil {
					out.RerankingAPIKey = l.RerankingAPIKey
				}
				out.Logging = Prepending(out.Logging, l.Logging)
				out.Timeouts = tm.Concat(out.Timeouts, l.Timeouts)
			}
			return out
		},
	)
}

// DefaultKeyspace is used when no scope names one.
const DefaultKeyspace = "default_keyspace"

// ResolvedDB is the parsed database configuration.
type ResolvedDB struct {
	Keyspace          string
	Token             TokenProvider
	AdditionalHeaders []HeaderProvider
	EmbeddingAPIKey   HeaderProvider
	RerankingAPIKey   HeaderProvider
	Logging           []ResolvedLoggingLayer
	Timeouts          ResolvedTimeouts
}

// Parse validates the merged record; the keyspace defaults to
// "default_keyspace" and must satisfy the server naming rule when set.
func (o DBOptions) Parse(fieldPath string) (ResolvedDB, error) {
	out := ResolvedDB{
		Keyspace:          DefaultKeyspace,
		Token:             o.Token,
		AdditionalHeaders: o.AdditionalHeaders,
		EmbeddingAPIKey:   o.EmbeddingAPIKey,
		RerankingAPIKey:   o.RerankingAPIKey,
	}
	if o.Keyspace != nil {
		if err := ValidateKeyspaceName(*o.Keyspace, joinPath(fieldPath, "keyspace")); err != nil {
			return ResolvedDB{}, err
		}
		out.Keyspace = *o.Keyspace
	}
	var err error
	if out.Logging, err = ParseLoggingLayers(o.Logging, joinPath(fieldPath, "logging")); err != nil {
		return ResolvedDB{}, err
	}
	if out.Timeouts, err = o.Timeouts.Parse(joinPath(fieldPath, "timeouts")); err != nil {
		return ResolvedDB{}, err
	}
	return out, nil
}

// BigNumbersPolicy selects how numeric wire tokens are decoded. See the
// serdes package for semantics.
type BigNumbersPolicy string

const (
	BigNumbersNever         BigNumbersPolicy = "never"
	BigNumbersAlwaysInt     BigNumbersPolicy = "always-bigint"
	BigNumbersAlwaysDecimal BigNumbersPolicy = "always-bignumber"
	BigNumbersWhenLossy     BigNumbersPolicy = "only-when-lossy"
)

// SourceOptions is the collection/table scope.
type SourceOptions struct {
	EmbeddingAPIKey HeaderProvider
	RerankingAPIKey HeaderProvider
	Logging         []LoggingLayer
	Timeouts        TimeoutOptions

	// BigNumbers maps field paths ("*"-wildcarded, "" for the whole document)
	// to a decoding policy.
	BigNumbers map[string]BigNumbersPolicy
}

// SourceMonoid merges SourceOptions layers.
func SourceMonoid() Monoid[SourceOptions] {
	return NewMonoid(
		func() SourceOptions { return SourceOptions{} },
		func(layers []SourceOptions) SourceOptions {
			var out SourceOptions
			tm := TimeoutMonoid()
			for _, l := range layers {
				if l.EmbeddingAPIKey != nil {
					out.EmbeddingAPIKey = l.EmbeddingAPIKey
				}
				if l.RerankingAPIKey != nil {
					out.RerankingAPIKey = l.RerankingAPIKey
				}
				out.Logging = Prepending(out.Logging, l.Logging)
				out.Timeouts = tm.Concat(out.Timeouts, l.Timeouts)
				if l.BigNumbers != nil {
					if out.BigNumbers == nil {
						out.BigNumbers = make(map[string]BigNumbersPolicy, len(l.BigNumbers))
					}
					for k, v := range l.BigNumbers {
						out.BigNumbers[k] = v
					}
				}
			}
			return out
		},
	)
}

// Parse validates the merged record, checking each big-numbers policy value.
func (o SourceOptions) Parse(fieldPath string) (SourceOptions, error) {
	for path, policy := range o.BigNumbers {
		switch policy {
		case BigNumbersNever, BigNumbersAlwaysInt, BigNumbersAlwaysDecimal, BigNumbersWhenLossy:
		default:
			return SourceOptions{}, &apierr.ConfigurationError{
				FieldPath: joinPath(fieldPath, "bigNumbers["+path+"]"),
				Message:   "unknown policy " + string(policy),
			}
		}
	}
	var err error
	if _, err = ParseLoggingLayers(o.Logging, joinPath(fieldPath, "logging")); err != nil {
		return SourceOptions{}, err
	}
	if _, err = o.Timeouts.Parse(joinPath(fieldPath, "timeouts")); err != nil {
		return SourceOptions{}, err
	}
	return o, nil
}
