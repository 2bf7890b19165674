// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package events

import (
	"fmt"
	"strings"
	"time"
)

// Name identifies an event family.
type Name string

const (
	CommandStarted   Name = "commandStarted"
	CommandSucceeded Name = "commandSucceeded"
	CommandFailed    Name = "commandFailed"
	CommandWarnings  Name = "commandWarnings"

	AdminCommandStarted   Name = "adminCommandStarted"
	AdminCommandSucceeded Name = "adminCommandSucceeded"
	AdminCommandFailed    Name = "adminCommandFailed"
	AdminCommandPolling   Name = "adminCommandPolling"
	AdminCommandWarnings  Name = "adminCommandWarnings"
)

// AllNames lists every event family, in a stable order.
func AllNames() []Name {
	return []Name{
		CommandStarted, CommandSucceeded, CommandFailed, CommandWarnings,
		AdminCommandStarted, AdminCommandSucceeded, AdminCommandFailed,
		AdminCommandPolling, AdminCommandWarnings,
	}
}

// IsAdmin reports whether the family belongs to the DevOps (admin) side.
func (n Name) IsAdmin() bool {
	return strings.HasPrefix(string(n), "admin")
}

// Event is the payload delivered to listeners. Fields beyond Name, Timestamp
// and RequestID are populated per family: command events carry the command
// shape, admin events the HTTP descriptor, polling events the iteration info.
type Event struct {
	Name      Name
	Timestamp time.Time

	// RequestID is shared by every event of one logical command. It is empty
	// when no listener was attached at emission time (UUID generation is
	// skipped in that case).
	RequestID string

	// CommandName is the Data API operation (find, insertMany, ...).
	CommandName string
	Keyspace    string
	Source      string // collection or table name

	// Method and URL describe the DevOps request for admin events.
	Method string
	URL    string

	Duration time.Duration // terminal events: time since started
	Warnings []string
	Err      error

	// PollIteration and PollElapsed are set on adminCommandPolling.
	PollIteration int
	PollElapsed   time.Duration

	ExtraLogInfo map[string]string

	stopped          bool
	stoppedImmediate bool
}

// StopPropagation prevents the event from bubbling past the current node.
// Remaining listeners at the current node still run.
func (e *Event) StopPropagation() {
	e.stopped = true
}

// StopImmediatePropagation halts delivery entirely: remaining listeners at
// the current node are skipped and the event does not bubble.
func (e *Event) StopImmediatePropagation() {
	e.stopped = true
	e.stoppedImmediate = true
}

// Message renders a one-line human-readable description of the event.
func (e *Event) Message() string {
	switch e.Name {
	case CommandStarted, AdminCommandStarted:
		return e.subject()
	case CommandSucceeded, AdminCommandSucceeded:
		return fmt.Sprintf("%s (took %s)", e.subject(), e.Duration.Round(time.Millisecond))
	case CommandFailed, AdminCommandFailed:
		return fmt.Sprintf("%s (took %s) - %v", e.subject(), e.Duration.Round(time.Millisecond), e.Err)
	case CommandWarnings, AdminCommandWarnings:
		return fmt.Sprintf("%s - warnings: %s", e.subject(), strings.Join(e.Warnings, "; "))
	case AdminCommandPolling:
		return fmt.Sprintf("%s (poll #%d, %s elapsed)", e.subject(), e.PollIteration, e.PollElapsed.Round(time.Second))
	}
	return e.subject()
}

func (e *Event) subject() string {
	if e.Name.IsAdmin() {
		return fmt.Sprintf("%s %s", e.Method, e.URL)
	}
	if e.Keyspace != "" && e.Source != "" {
		return fmt.Sprintf("%s on %s.%s", e.CommandName, e.Keyspace, e.Source)
	}
	if e.Keyspace != "" {
		return fmt.Sprintf("%s on %s", e.CommandName, e.Keyspace)
	}
	return e.CommandName
}

// Formatter renders an event for a console sink. The second argument is the
// pre-rendered message.
type Formatter func(e *Event, message string) string

// DefaultFormatter renders "YYYY-MM-DD HH:MM:SS TZ [reqId8] [eventName]: message".
// An absent request ID renders as dashes.
func DefaultFormatter(e *Event, message string) string {
	reqID := "--------"
	if len(e.RequestID) >= 8 {
		reqID = e.RequestID[:8]
	}
	return fmt.Sprintf("%s [%s] [%s]: %s",
		e.Timestamp.Format("2006-01-02 15:04:05 MST"), reqID, e.Name, message)
}
