// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package events

import (
	"errors"
	"testing"
	"time"
)

func TestEmitBubblesToParent(t *testing.T) {
	root := NewEmitter(nil)
	db := NewEmitter(root)
	coll := NewEmitter(db)

	var order []string
	coll.On(CommandStarted, func(e *Event) { order = append(order, "coll") })
	db.On(CommandStarted, func(e *Event) { order = append(order, "db") })
	root.On(CommandStarted, func(e *Event) { order = append(order, "root") })

	coll.Emit(&Event{Name: CommandStarted, CommandName: "find"})

	want := []string{"coll", "db", "root"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestStopPropagation(t *testing.T) {
	root := NewEmitter(nil)
	child := NewEmitter(root)

	var childCalls, siblingCalls, rootCalls int
	child.On(CommandStarted, func(e *Event) {
		childCalls++
		e.StopPropagation()
	})
	child.On(CommandStarted, func(e *Event) { siblingCalls++ })
	root.On(CommandStarted, func(e *Event) { rootCalls++ })

	child.Emit(&Event{Name: CommandStarted})

	if childCalls != 1 {
		t.Errorf("child listener calls: %d", childCalls)
	}
	if siblingCalls != 1 {
		t.Error("StopPropagation should not skip remaining listeners at the same node")
	}
	if rootCalls != 0 {
		t.Error("event should not have bubbled")
	}
}

func TestStopImmediatePropagation(t *testing.T) {
	root := NewEmitter(nil)
	child := NewEmitter(root)

	var siblingCalls, rootCalls int
	child.On(CommandStarted, func(e *Event) { e.StopImmediatePropagation() })
	child.On(CommandStarted, func(e *Event) { siblingCalls++ })
	root.On(CommandStarted, func(e *Event) { rootCalls++ })

	child.Emit(&Event{Name: CommandStarted})

	if siblingCalls != 0 || rootCalls != 0 {
		t.Errorf("immediate stop leaked: sibling=%d root=%d", siblingCalls, rootCalls)
	}
}

func TestUnsubscribe(t *testing.T) {
	em := NewEmitter(nil)
	var calls int
	off := em.On(CommandSucceeded, func(e *Event) { calls++ })

	em.Emit(&Event{Name: CommandSucceeded})
	off()
	off() // second call is a no-op
	em.Emit(&Event{Name: CommandSucceeded})

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestHasListenersWalksAncestors(t *testing.T) {
	root := NewEmitter(nil)
	child := NewEmitter(root)

	if child.HasListeners(CommandStarted) {
		t.Error("no listeners attached yet")
	}
	off := root.On(CommandStarted, func(e *Event) {})
	if !child.HasListeners(CommandStarted) {
		t.Error("ancestor listener should be visible from the child")
	}
	if child.HasListeners(CommandFailed) {
		t.Error("other families should be unaffected")
	}
	off()
	if child.HasListeners(CommandStarted) {
		t.Error("listener removal should propagate to HasListeners")
	}
}

func TestEventsOnlyReachTheirFamily(t *testing.T) {
	em := NewEmitter(nil)
	var started, failed int
	em.On(CommandStarted, func(e *Event) { started++ })
	em.On(CommandFailed, func(e *Event) { failed++ })

	em.Emit(&Event{Name: CommandStarted})
	em.Emit(&Event{Name: CommandFailed, Err: errors.New("nope")})
	em.Emit(&Event{Name: CommandSucceeded})

	if started != 1 || failed != 1 {
		t.Errorf("family routing broken: started=%d failed=%d", started, failed)
	}
}

func TestDefaultFormatter(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	e := &Event{
		Name:        CommandStarted,
		Timestamp:   ts,
		RequestID:   "abcdef1234567890",
		CommandName: "find",
		Keyspace:    "ks",
		Source:      "stuff",
	}
	got := DefaultFormatter(e, e.Message())
	want := "2024-03-01 12:30:45 UTC [abcdef12] [commandStarted]: find on ks.stuff"
	if got != want {
		t.Errorf("formatter:\n got  %q\n want %q", got, want)
	}

	// Missing request ID renders as dashes.
	e.RequestID = ""
	if got := DefaultFormatter(e, "x"); got != "2024-03-01 12:30:45 UTC [--------] [commandStarted]: x" {
		t.Errorf("empty request id: %q", got)
	}
}

func TestAdminPollingMessage(t *testing.T) {
	e := &Event{
		Name:          AdminCommandPolling,
		Method:        "GET",
		URL:           "https://api/v2/databases/abc",
		PollIteration: 3,
		PollElapsed:   30 * time.Second,
	}
	msg := e.Message()
	if msg != "GET https://api/v2/databases/abc (poll #3, 30s elapsed)" {
		t.Errorf("unexpected message: %q", msg)
	}
}
