// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
Package events implements the hierarchical command-event emitter.

Emitters form a tree mirroring the client surface (client -> database ->
collection/table). Emission runs the listeners registered at the origin node,
then bubbles to the parent, unless a listener stops propagation. Within one
node listeners run in registration order; bubbling preserves per-command
ordering at every ancestor.

For any single command the emission order is guaranteed:

	started -> warnings* -> polling* -> (succeeded | failed)

with exactly one started and exactly one terminal event per logical command,
sharing one request ID across retries.
*/
package events
