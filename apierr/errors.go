// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package apierr

import (
	"fmt"
	"time"
)

// AuthSentinel is the body marker the Data API returns for invalid tokens,
// sometimes with a 2xx status.
const AuthSentinel = "UNAUTHENTICATED: Invalid token"

// ErrorCodeCollectionNotExist is the Data API error code for a missing
// collection or table.
const ErrorCodeCollectionNotExist = "COLLECTION_NOT_EXIST"

// TimeoutCategory names which budget expired in a TimeoutError.
type TimeoutCategory string

const (
	TimeoutGeneral         TimeoutCategory = "general"
	TimeoutRequest         TimeoutCategory = "request"
	TimeoutProvisioning    TimeoutCategory = "provisioning"
	TimeoutAdmin           TimeoutCategory = "admin"
	TimeoutDatabaseAdmin   TimeoutCategory = "databaseAdmin"
	TimeoutKeyspaceAdmin   TimeoutCategory = "keyspaceAdmin"
	TimeoutCollectionAdmin TimeoutCategory = "collectionAdmin"
	TimeoutTableAdmin      TimeoutCategory = "tableAdmin"
)

// ErrorDescriptor is a single error entry from a Data API response envelope.
type ErrorDescriptor struct {
	ErrorCode  string         `json:"errorCode,omitempty"`
	Message    string         `json:"message,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func (d ErrorDescriptor) String() string {
	if d.ErrorCode != "" && d.Message != "" {
		return fmt.Sprintf("%s: %s", d.ErrorCode, d.Message)
	}
	if d.ErrorCode != "" {
		return d.ErrorCode
	}
	return d.Message
}

// ConfigurationError reports an invalid option value at construction time.
type ConfigurationError struct {
	FieldPath string
	Message   string
}

func (e *ConfigurationError) Error() string {
	if e.FieldPath == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Message)
	}
	return fmt.Sprintf("invalid configuration for %s: %s", e.FieldPath, e.Message)
}

// TransportError wraps a failure to obtain any HTTP response
// (connection refused, DNS, TLS).
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TimeoutError reports an expired timeout budget.
type TimeoutError struct {
	Category TimeoutCategory
	Elapsed  time.Duration
	Budget   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timeout of %s expired after %s", e.Category, e.Budget, e.Elapsed.Round(time.Millisecond))
}

// HTTPError reports a non-2xx response (other than 401) with a bounded body
// snapshot for debugging.
type HTTPError struct {
	Status     int
	StatusText string
	Body       []byte
	URL        string
}

func (e *HTTPError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("HTTP %d (%s) from %s: %s", e.Status, e.StatusText, e.URL, e.Body)
	}
	return fmt.Sprintf("HTTP %d (%s) from %s", e.Status, e.StatusText, e.URL)
}

// AuthenticationError reports a 401 response or the AuthSentinel body marker.
type AuthenticationError struct {
	Status int
	Body   []byte
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed (status %d): token was rejected", e.Status)
}

// ResponseError reports a 2xx response carrying a non-empty errors array.
// PartialResult holds any work the server completed before failing
// (e.g. the inserted IDs of a partially applied insertMany).
type ResponseError struct {
	Errors        []ErrorDescriptor
	PartialResult any
}

func (e *ResponseError) Error() string {
	if len(e.Errors) == 0 {
		return "command failed with an empty error list"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("command failed: %s", e.Errors[0])
	}
	return fmt.Sprintf("command failed: %s (and %d more)", e.Errors[0], len(e.Errors)-1)
}

// CollectionNotFoundError reifies the COLLECTION_NOT_EXIST error code with
// the keyspace and collection names the caller addressed.
type CollectionNotFoundError struct {
	Keyspace   string
	Collection string
	Response   *ResponseError
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("collection %s.%s does not exist", e.Keyspace, e.Collection)
}

func (e *CollectionNotFoundError) Unwrap() error {
	if e.Response == nil {
		return nil
	}
	return e.Response
}

// CursorStateError reports a cursor state-machine contract violation, such as
// calling a builder method after iteration began.
type CursorStateError struct {
	State string
	Op    string
}

func (e *CursorStateError) Error() string {
	return fmt.Sprintf("cursor operation %s is illegal in state %s", e.Op, e.State)
}

// SerializationError reports a value that could not produce a valid wire form.
type SerializationError struct {
	Path    []string
	Message string
	Err     error
}

func (e *SerializationError) Error() string {
	where := "document root"
	if len(e.Path) > 0 {
		where = fmt.Sprintf("field %v", e.Path)
	}
	if e.Err != nil {
		return fmt.Sprintf("cannot serialize %s: %s: %v", where, e.Message, e.Err)
	}
	return fmt.Sprintf("cannot serialize %s: %s", where, e.Message)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// OperationNotAllowedError reports a long-running operation that entered a
// status outside its legal states.
type OperationNotAllowedError struct {
	Resource    string
	Status      string
	LegalStates []string
	Target      string
}

func (e *OperationNotAllowedError) Error() string {
	return fmt.Sprintf("resource %s entered status %s while waiting for %s (legal transitional states: %v)",
		e.Resource, e.Status, e.Target, e.LegalStates)
}

// ClientClosedError reports a request submitted after the client was closed.
type ClientClosedError struct{}

func (e *ClientClosedError) Error() string {
	return "client is closed"
}

// CancelledError reports caller cancellation observed mid-operation.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("operation cancelled: %v", e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }
