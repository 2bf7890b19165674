// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package events

import (
	"sync"
	"time"
)

// Listener receives events. Listeners run synchronously on the emitting
// goroutine; they must not block.
type Listener func(*Event)

// Emitter is one node in the emitter tree. The zero value is not usable;
// construct with NewEmitter.
//
// Listener registration and emission are safe for concurrent use. Emission
// takes a snapshot of the listener list, so a listener that unsubscribes
// itself still finishes the in-flight emission.
type Emitter struct {
	parent *Emitter

	mu        sync.RWMutex
	listeners map[Name][]listenerEntry
	nextID    int
}

type listenerEntry struct {
	id int
	fn Listener
}

// NewEmitter creates an emitter bubbling to parent. A nil parent makes a root.
func NewEmitter(parent *Emitter) *Emitter {
	return &Emitter{
		parent:    parent,
		listeners: make(map[Name][]listenerEntry),
	}
}

// Parent returns the node this emitter bubbles to, or nil for a root.
func (em *Emitter) Parent() *Emitter { return em.parent }

// On registers a listener for one event family and returns an unsubscribe
// function. Unsubscribing twice is a no-op.
func (em *Emitter) On(name Name, fn Listener) func() {
	em.mu.Lock()
	id := em.nextID
	em.nextID++
	em.listeners[name] = append(em.listeners[name], listenerEntry{id: id, fn: fn})
	em.mu.Unlock()

	return func() {
		em.mu.Lock()
		defer em.mu.Unlock()
		entries := em.listeners[name]
		for i, entry := range entries {
			if entry.id == id {
				em.listeners[name] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// RemoveAllListeners drops every listener for the given families, or for all
// families when none are named. Only this node is affected.
func (em *Emitter) RemoveAllListeners(names ...Name) {
	em.mu.Lock()
	defer em.mu.Unlock()
	if len(names) == 0 {
		em.listeners = make(map[Name][]listenerEntry)
		return
	}
	for _, name := range names {
		delete(em.listeners, name)
	}
}

// HasListeners reports whether any listener for name is attached at this node
// or any ancestor. The HTTP core uses this to skip request-ID generation when
// nobody is listening.
func (em *Emitter) HasListeners(name Name) bool {
	for node := em; node != nil; node = node.parent {
		node.mu.RLock()
		n := len(node.listeners[name])
		node.mu.RUnlock()
		if n > 0 {
			return true
		}
	}
	return false
}

// Emit delivers the event at this node and bubbles it to ancestors until a
// listener stops propagation. A zero Timestamp is stamped with the current time.
func (em *Emitter) Emit(e *Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	for node := em; node != nil; node = node.parent {
		node.mu.RLock()
		snapshot := make([]listenerEntry, len(node.listeners[e.Name]))
		copy(snapshot, node.listeners[e.Name])
		node.mu.RUnlock()

		for _, entry := range snapshot {
			entry.fn(e)
			if e.stoppedImmediate {
				return
			}
		}
		if e.stopped {
			return
		}
	}
}
