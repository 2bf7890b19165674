// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package options

import (
	"fmt"
	"time"

	"github.com/tomtom215/datalith/apierr"
)

// Default timeout budgets, matching the Data API's recommended client
// defaults. Admin budgets are long because provisioning polls span minutes.
const (
	DefaultRequestTimeout         = 10 * time.Second
	DefaultGeneralMethodTimeout   = 30 * time.Second
	DefaultCollectionAdminTimeout = 60 * time.Second
	DefaultTableAdminTimeout      = 30 * time.Second
	DefaultKeyspaceAdminTimeout   = 30 * time.Second
	DefaultDatabaseAdminTimeout   = 10 * time.Minute
)

// TimeoutOptions is one layer of timeout overrides. A nil field inherits the
// weaker layer's value; the strongest non-nil value wins per field.
type TimeoutOptions struct {
	// RequestTimeout caps a single HTTP exchange.
	RequestTimeout *time.Duration
	// GeneralMethodTimeout caps one whole non-admin method call (all pages,
	// all retries).
	GeneralMethodTimeout *time.Duration
	// CollectionAdminTimeout caps collection schema operations.
	CollectionAdminTimeout *time.Duration
	// TableAdminTimeout caps table schema operations.
	TableAdminTimeout *time.Duration
	// KeyspaceAdminTimeout caps keyspace lifecycle operations.
	KeyspaceAdminTimeout *time.Duration
	// DatabaseAdminTimeout caps database lifecycle operations including the
	// long-running provisioning poll.
	DatabaseAdminTimeout *time.Duration
}

// TimeoutMonoid merges TimeoutOptions layers field-by-field,
// rightmost-non-nil wins.
func TimeoutMonoid() Monoid[TimeoutOptions] {
	return NewMonoid(
		func() TimeoutOptions { return TimeoutOptions{} },
		func(layers []TimeoutOptions) TimeoutOptions {
			var out TimeoutOptions
			for _, l := range layers {
				out.RequestTimeout = Rightmost(out.RequestTimeout, l.RequestTimeout)
				out.GeneralMethodTimeout = Rightmost(out.GeneralMethodTimeout, l.GeneralMethodTimeout)
				out.CollectionAdminTimeout = Rightmost(out.CollectionAdminTimeout, l.CollectionAdminTimeout)
				out.TableAdminTimeout = Rightmost(out.TableAdminTimeout, l.TableAdminTimeout)
				out.KeyspaceAdminTimeout = Rightmost(out.KeyspaceAdminTimeout, l.KeyspaceAdminTimeout)
				out.DatabaseAdminTimeout = Rightmost(out.DatabaseAdminTimeout, l.DatabaseAdminTimeout)
			}
			return out
		},
	)
}

// ResolvedTimeouts is the fully-defaulted, immutable timeout record handed to
// the HTTP core.
type ResolvedTimeouts struct {
	Request         time.Duration
	GeneralMethod   time.Duration
	CollectionAdmin time.Duration
	TableAdmin      time.Duration
	KeyspaceAdmin   time.Duration
	DatabaseAdmin   time.Duration
}

// Parse validates a merged layer and fills defaults. Negative values are
// configuration errors; zero means "use the default".
func (o TimeoutOptions) Parse(fieldPath string) (ResolvedTimeouts, error) {
	out := ResolvedTimeouts{
		Request:         DefaultRequestTimeout,
		GeneralMethod:   DefaultGeneralMethodTimeout,
		CollectionAdmin: DefaultCollectionAdminTimeout,
		TableAdmin:      DefaultTableAdminTimeout,
		KeyspaceAdmin:   DefaultKeyspaceAdminTimeout,
		DatabaseAdmin:   DefaultDatabaseAdminTimeout,
	}
	fields := []struct {
		name string
		src  *time.Duration
		dst  *time.Duration
	}{
		{"requestTimeout", o.RequestTimeout, &out.Request},
		{"generalMethodTimeout", o.GeneralMethodTimeout, &out.GeneralMethod},
		{"collectionAdminTimeout", o.CollectionAdminTimeout, &out.CollectionAdmin},
		{"tableAdminTimeout", o.TableAdminTimeout, &out.TableAdmin},
		{"keyspaceAdminTimeout", o.KeyspaceAdminTimeout, &out.KeyspaceAdmin},
		{"databaseAdminTimeout", o.DatabaseAdminTimeout, &out.DatabaseAdmin},
	}
	for _, f := range fields {
		if f.src == nil || *f.src == 0 {
			continue
		}
		if *f.src < 0 {
			return ResolvedTimeouts{}, &apierr.ConfigurationError{
				FieldPath: joinPath(fieldPath, f.name),
				Message:   fmt.Sprintf("timeout must be non-negative, got %s", *f.src),
			}
		}
		*f.dst = *f.src
	}
	return out, nil
}

// ForCategory maps a timeout category to its resolved budget.
func (r ResolvedTimeouts) ForCategory(cat apierr.TimeoutCategory) time.Duration {
	switch cat {
	case apierr.TimeoutRequest:
		return r.Request
	case apierr.TimeoutGeneral:
		return r.GeneralMethod
	case apierr.TimeoutCollectionAdmin:
		return r.CollectionAdmin
	case apierr.TimeoutTableAdmin:
		return r.TableAdmin
	case apierr.TimeoutKeyspaceAdmin:
		return r.KeyspaceAdmin
	case apierr.TimeoutDatabaseAdmin, apierr.TimeoutProvisioning:
		return r.DatabaseAdmin
	case apierr.TimeoutAdmin:
		return r.DatabaseAdmin
	}
	return r.GeneralMethod
}

func joinPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}
