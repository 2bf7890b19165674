// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

// Package client is the public surface of Datalith: the DataAPIClient entry
// point, Database/Collection/Table handles over the Data API, the lazy
// paginated FindCursor, and the Astra DevOps admin facades.
//
// Handles form a tree (client -> database -> collection/table); each level
// carries its own event emitter bubbling to the parent and its own merged
// option scope. Handles are cheap and safe to share across goroutines.
package client
