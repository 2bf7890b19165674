// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package apierr

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"time"
)

// IsRetryable reports whether a retry adapter may re-attempt after err.
//
// Retryable: transport failures (the request may never have reached the
// server) and transient HTTP statuses (429, 5xx). Everything else is
// terminal: auth failures, response errors, timeouts (the budget is gone),
// configuration and state errors.
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return retryableStatus(he.Status)
	}
	return false
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// JitteredBackoff returns base scaled by a random factor in [0.5, 1.5),
// spreading retries from concurrent clients.
func JitteredBackoff(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	factor := 0.5 + rand.Float64()
	return time.Duration(float64(base) * factor)
}
