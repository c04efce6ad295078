package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Journal = (*Store)(nil)

const ddl = `
CREATE TABLE IF NOT EXISTS session_transitions (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    from_state  TEXT         NOT NULL,
    to_state    TEXT         NOT NULL,
    recorded_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_session_transitions_session_id
    ON session_transitions (session_id);

CREATE TABLE IF NOT EXISTS topology_edits (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    op          TEXT         NOT NULL,
    detail      TEXT         NOT NULL DEFAULT '',
    recorded_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_topology_edits_session_id
    ON topology_edits (session_id);
`

// Store is a PostgreSQL-backed [Journal] holding a single [pgxpool.Pool].
// Obtain one via [Open]; do not construct directly.
type Store struct {
	pool *pgxpool.Pool
}

// Open returns a [Journal] backed by the PostgreSQL database at dsn. An
// empty dsn disables the journal entirely, returning a no-op sink instead
// of an error — the journal is never load-bearing for correctness.
func Open(ctx context.Context, dsn string) (Journal, error) {
	if dsn == "" {
		return noop{}, nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}

	slog.Info("journal: connected", "dsn_set", true)
	return &Store{pool: pool}, nil
}

// RecordTransition implements [Journal].
func (s *Store) RecordTransition(ctx context.Context, sessionID, from, to string) error {
	const q = `INSERT INTO session_transitions (session_id, from_state, to_state) VALUES ($1, $2, $3)`
	if _, err := s.pool.Exec(ctx, q, sessionID, from, to); err != nil {
		return fmt.Errorf("journal: record transition: %w", err)
	}
	return nil
}

// RecordTopologyEdit implements [Journal].
func (s *Store) RecordTopologyEdit(ctx context.Context, sessionID, op, detail string) error {
	const q = `INSERT INTO topology_edits (session_id, op, detail) VALUES ($1, $2, $3)`
	if _, err := s.pool.Exec(ctx, q, sessionID, op, detail); err != nil {
		return fmt.Errorf("journal: record topology edit: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
