// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package serdes

// resultKind discriminates CodecResult. The zero value is nevermind so a
// forgotten return delegates instead of silently truncating the tree.
type resultKind int

const (
	kindNevermind resultKind = iota
	kindContinue
	kindReplace
	kindRecurse
	kindDone
	kindFail
)

// CodecResult is what a codec decides for one node. Exactly one of the
// constructors below produces it.
type CodecResult struct {
	kind     resultKind
	value    any
	hasValue bool
}

// Nevermind delegates to the next codec in selection order.
func Nevermind() CodecResult {
	return CodecResult{kind: kindNevermind}
}

// Continue keeps the current value and lets the engine recurse into it if it
// is a container. Remaining codecs are skipped.
func Continue() CodecResult {
	return CodecResult{kind: kindContinue}
}

// Replace substitutes v for the node and stops; the engine does not recurse
// into v and no later codec sees it.
func Replace(v any) CodecResult {
	return CodecResult{kind: kindReplace, value: v, hasValue: true}
}

// Recurse substitutes v and recurses into it; later codecs in the selection
// list observe the post-recursion value.
func Recurse(v any) CodecResult {
	return CodecResult{kind: kindRecurse, value: v, hasValue: true}
}

// Done stops with the current value as-is, no recursion.
func Done() CodecResult {
	return CodecResult{kind: kindDone}
}

// Fail aborts the whole traversal with a serialization error naming the
// current path. Invalid tagged values are fatal, never silently coerced.
func Fail(msg string) CodecResult {
	return CodecResult{kind: kindFail, value: msg}
}

// MapAfterHook transforms a node after its whole subtree has been processed.
// Hooks run deepest node first, registration order within a node.
type MapAfterHook func(value any) any
