package journal

import "context"

// noop is the [Journal] used when no DSN is configured. The audit trail is
// diagnostic only, so its absence must never change daemon behavior.
type noop struct{}

func (noop) RecordTransition(ctx context.Context, sessionID, from, to string) error { return nil }

func (noop) RecordTopologyEdit(ctx context.Context, sessionID, op, detail string) error {
	return nil
}

func (noop) Close() {}
