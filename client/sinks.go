// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
sinks.go - routing logging layers to console streams

Resolved logging layers arrive strongest-first, so the first layer naming an
event family wins. "event" emits need no sink at all: listeners registered
with On already receive everything. Console emits attach a printing listener
at the scope's emitter; verbose variants add the structured payload through
the process logger.
*/

package client

import (
	"fmt"
	"os"

	"github.com/tomtom215/datalith/events"
	"github.com/tomtom215/datalith/internal/logging"
	"github.com/tomtom215/datalith/options"
)

// installSinks attaches console listeners for the given scope. Layers are
// strongest-first; only the first layer per event family applies.
func (c *DataAPIClient) installSinks(em *events.Emitter, layers []options.ResolvedLoggingLayer) {
	seen := make(map[events.Name]bool, len(layers))
	for _, layer := range layers {
		if seen[layer.Event] {
			continue
		}
		seen[layer.Event] = true

		for _, emit := range layer.Emits {
			switch emit {
			case options.OutputEvent:
				// Listener delivery is the emitter's default behavior.
			case options.OutputStdout:
				c.consoleSink(em, layer.Event, os.Stdout, false)
			case options.OutputStderr:
				c.consoleSink(em, layer.Event, os.Stderr, false)
			case options.OutputStdoutVerbose:
				c.consoleSink(em, layer.Event, os.Stdout, true)
			case options.OutputStderrVerbose:
				c.consoleSink(em, layer.Event, os.Stderr, true)
			}
		}
	}
}

func (c *DataAPIClient) consoleSink(em *events.Emitter, name events.Name, w *os.File, verbose bool) {
	em.On(name, func(e *events.Event) {
		fmt.Fprintln(w, c.format(e))
		if verbose {
			logging.Debug().
				Str("event", string(e.Name)).
				Str("request_id", e.RequestID).
				Str("command", e.CommandName).
				Str("keyspace", e.Keyspace).
				Str("source", e.Source).
				Dur("duration", e.Duration).
				Msg("event detail")
		}
	})
}
