// Package journal provides an optional, append-only audit trail of session
// lifecycle transitions and graph topology edits, for the post-mortem
// diagnosis SPEC_FULL.md §11 calls out (spec.md §9 notes that AGM's
// unconditional close-time teardown "should be documented" — a journal is
// how an operator sees that it happened, after the fact).
//
// Grounded on the teacher's pkg/memory/postgres.Store: a pgxpool.Pool behind
// a small interface, context-scoped queries, idempotent migration on open.
// The journal is strictly diagnostic. Nothing in pkg/session, pkg/graph, or
// internal/apiserver depends on a write succeeding, and [Open] with an empty
// DSN returns a no-op sink rather than an error.
package journal

import "context"

// Journal records audit events for a running agmd instance. Implementations
// must be safe for concurrent use; callers never serialize around a write.
type Journal interface {
	// RecordTransition logs a session lifecycle state change (spec.md
	// §4.4's state machine). from/to are State.String() values.
	RecordTransition(ctx context.Context, sessionID, from, to string) error

	// RecordTopologyEdit logs a graph topology mutation — AIF
	// connect/disconnect, loopback, or echo-reference wiring (spec.md
	// §4.3/§5). op names the edit, detail is a short human-readable
	// description (e.g. "aif=3 connect=true").
	RecordTopologyEdit(ctx context.Context, sessionID, op, detail string) error

	// Close releases any resources held by the journal. Safe to call on
	// a no-op journal.
	Close()
}
