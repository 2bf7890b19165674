// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

// Package httpcore turns abstract operation requests into JSON HTTP
// exchanges: it enforces timeout budgets, applies per-API retry policies,
// drives long-running DevOps polls, resolves layered headers, emits command
// events, and maps wire failures onto the typed error taxonomy.
//
// The Data API side (Executor) POSTs single-entry command envelopes and
// retries only operations the caller marked idempotent. The DevOps side
// (DevOpsClient) speaks REST through a circuit breaker with capped
// exponential backoff, and is pinned to HTTP/1.x because the gateway rejects
// HTTP/2.
package httpcore
