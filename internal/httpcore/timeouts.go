// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
timeouts.go - per-operation timeout budgeting

A TimeoutManager is created per logical operation and consulted before every
request it makes. Single-phase managers hand the whole budget to one request;
multi-phase managers cap each request separately while the overall budget
drains across a poll or pagination loop. Advance is synchronous: a spent
budget errors before any request goes out.
*/

package httpcore

import (
	"time"

	"github.com/tomtom215/datalith/apierr"
)

// TimeoutManager tracks one operation's budget. Not safe for concurrent use;
// each logical operation owns its manager.
type TimeoutManager struct {
	category apierr.TimeoutCategory
	budget   time.Duration
	perReq   time.Duration // 0 = no per-request cap
	started  time.Time
}

// NewSinglePhase budgets one request, e.g. a databaseAdmin GET.
func NewSinglePhase(category apierr.TimeoutCategory, budget time.Duration) *TimeoutManager {
	return &TimeoutManager{category: category, budget: budget, started: time.Now()}
}

// NewMultiPhase spans a loop: overall drains monotonically while each request
// is additionally capped by perRequest.
func NewMultiPhase(category apierr.TimeoutCategory, overall, perRequest time.Duration) *TimeoutManager {
	return &TimeoutManager{category: category, budget: overall, perReq: perRequest, started: time.Now()}
}

// Category names the budget this manager enforces.
func (tm *TimeoutManager) Category() apierr.TimeoutCategory { return tm.category }

// Elapsed is the wall time since the operation began.
func (tm *TimeoutManager) Elapsed() time.Duration { return time.Since(tm.started) }

// Remaining is the unspent overall budget; it can be negative once overdrawn.
func (tm *TimeoutManager) Remaining() time.Duration { return tm.budget - tm.Elapsed() }

// Advance returns the budget for the next request and the error constructor
// the transport should use if that request times out. A spent budget returns
// the timeout error immediately.
func (tm *TimeoutManager) Advance() (time.Duration, func() error, error) {
	remaining := tm.Remaining()
	if remaining <= 0 {
		return 0, nil, tm.mkError()
	}
	if tm.perReq > 0 && tm.perReq < remaining {
		remaining = tm.perReq
	}
	return remaining, tm.mkError, nil
}

func (tm *TimeoutManager) mkError() error {
	return &apierr.TimeoutError{
		Category: tm.category,
		Elapsed:  tm.Elapsed(),
		Budget:   tm.budget,
	}
}
