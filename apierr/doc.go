// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
Package apierr defines the typed error taxonomy surfaced by the client.

Every error is a value with structured fields callers can inspect through
errors.As without parsing message strings:

  - ConfigurationError: invalid option value, carries the offending field path
  - TransportError: the fetch transport obtained no response at all
  - TimeoutError: a timeout budget expired, carries the timed-out category
  - HTTPError: non-2xx (other than 401) with a bounded body snapshot
  - AuthenticationError: 401 or the UNAUTHENTICATED sentinel body
  - ResponseError: 2xx with a non-empty errors array
  - CollectionNotFoundError: COLLECTION_NOT_EXIST reified with names
  - CursorStateError: cursor state-machine contract violation
  - SerializationError: a value could not produce a valid wire form
  - OperationNotAllowedError: a long-running poll left its legal states
  - ClientClosedError: request submitted after Close
  - CancelledError: caller cancellation observed mid-operation

IsRetryable classifies errors for the retry adapters: transport failures and
transient HTTP statuses (429, 5xx) retry; everything else does not.
*/
package apierr
