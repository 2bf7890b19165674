// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package options

import (
	"fmt"

	"github.com/tomtom215/datalith/apierr"
	"github.com/tomtom215/datalith/events"
)

// LogOutput names a sink for matched events.
type LogOutput string

const (
	// OutputEvent delivers to registered event listeners only.
	OutputEvent LogOutput = "event"
	// OutputStdout / OutputStderr print the one-line form.
	OutputStdout LogOutput = "stdout"
	OutputStderr LogOutput = "stderr"
	// Verbose variants print the full structured payload.
	OutputStdoutVerbose LogOutput = "stdout:verbose"
	OutputStderrVerbose LogOutput = "stderr:verbose"
)

// LoggingLayer selects event families and where they go. Events may be the
// literal "all" or explicit family names.
type LoggingLayer struct {
	Events []string    `validate:"required,min=1,dive,oneof=all commandStarted commandSucceeded commandFailed commandWarnings adminCommandStarted adminCommandSucceeded adminCommandFailed adminCommandPolling adminCommandWarnings"`
	Emits  []LogOutput `validate:"required,min=1,dive,oneof=event stdout stderr stdout:verbose stderr:verbose"`
}

// ResolvedLoggingLayer is one event family mapped to its sinks, "all" expanded.
type ResolvedLoggingLayer struct {
	Event events.Name
	Emits []LogOutput
}

// LoggingMonoid merges logging layers right-to-left: a collection-scope layer
// is consulted before the client-scope defaults behind it.
func LoggingMonoid() Monoid[[]LoggingLayer] {
	return PrependingArray[LoggingLayer]()
}

// ParseLoggingLayers validates and expands layers. Routing one event to both
// stdout and stderr (verbose or not) is rejected: the streams would interleave.
func ParseLoggingLayers(layers []LoggingLayer, fieldPath string) ([]ResolvedLoggingLayer, error) {
	var out []ResolvedLoggingLayer
	for i, layer := range layers {
		layerPath := fmt.Sprintf("%s[%d]", fieldPath, i)
		if err := validateStruct(layer, layerPath); err != nil {
			return nil, err
		}

		hasStdout, hasStderr := false, false
		for _, emit := range layer.Emits {
			switch emit {
			case OutputStdout, OutputStdoutVerbose:
				hasStdout = true
			case OutputStderr, OutputStderrVerbose:
				hasStderr = true
			}
		}
		if hasStdout && hasStderr {
			return nil, &apierr.ConfigurationError{
				FieldPath: layerPath + ".emits",
				Message:   "cannot route the same events to both stdout and stderr",
			}
		}

		for _, ev := range layer.Events {
			if ev == "all" {
				for _, name := range events.AllNames() {
					out = append(out, ResolvedLoggingLayer{Event: name, Emits: layer.Emits})
				}
				continue
			}
			out = append(out, ResolvedLoggingLayer{Event: events.Name(ev), Emits: layer.Emits})
		}
	}
	return out, nil
}
