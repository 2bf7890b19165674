// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

// Package metrics provides Prometheus instrumentation for the client:
// command latency and outcomes, retry and circuit-breaker activity,
// long-running poll progress, and cursor paging.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Command Metrics
	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datalith_command_duration_seconds",
			Help:    "Duration of Data API and DevOps API commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"api", "command"}, // api: "data" or "devops"
	)

	CommandRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datalith_command_requests_total",
			Help: "Total number of commands by outcome",
		},
		[]string{"api", "command", "outcome"}, // outcome: "success", "error", "timeout"
	)

	CommandHTTPStatus = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datalith_command_http_status_total",
			Help: "HTTP status codes observed per API",
		},
		[]string{"api", "status"},
	)

	// Retry Metrics
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datalith_retry_attempts_total",
			Help: "Total retry attempts beyond the first request",
		},
		[]string{"api", "reason"}, // reason: "transport", "http_5xx", "http_429"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "datalith_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datalith_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"breaker", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datalith_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by outcome",
		},
		[]string{"breaker", "outcome"}, // "success", "failure", "rejected"
	)

	// Long-Running Operation Metrics
	LongRunningPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datalith_long_running_polls_total",
			Help: "Poll iterations performed while awaiting a target status",
		},
		[]string{"resource"},
	)

	LongRunningDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datalith_long_running_duration_seconds",
			Help:    "Wall time from initial request to terminal status",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"resource", "outcome"},
	)

	// Cursor Metrics
	CursorPagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datalith_cursor_pages_total",
			Help: "Pages fetched by find cursors",
		},
		[]string{"source_type"}, // "collection" or "table"
	)

	CursorDocumentsYielded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datalith_cursor_documents_total",
			Help: "Documents yielded to consumers by find cursors",
		},
		[]string{"source_type"},
	)
)

// ObserveCommand records one finished command.
func ObserveCommand(api, command string, start time.Time, outcome string) {
	CommandDuration.WithLabelValues(api, command).Observe(time.Since(start).Seconds())
	CommandRequests.WithLabelValues(api, command, outcome).Inc()
}

// ObserveHTTPStatus records one HTTP response status.
func ObserveHTTPStatus(api string, status int) {
	CommandHTTPStatus.WithLabelValues(api, strconv.Itoa(status)).Inc()
}
