// Package sqlite persists the signed-in session credential in a local
// SQLite database.
//
// WHAT IS (AND IS NOT) PERSISTED:
// Exactly one row: the refresh token of the last signed-in account, plus
// the auth ID and email it belongs to. Domain entities (publications,
// comments, tickets, profiles) are NEVER stored — they are server-owned
// and re-fetched on every screen visit. This store only exists so the
// app can resume a session without asking for the password again.
//
// WHY modernc.org/sqlite?
// Pure Go translation of SQLite — no C compiler, no CGo, cross-compiles
// everywhere Go does. The blank import registers the "sqlite" driver
// with database/sql at init time.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the sql.DB connection pool. It implements
// identity.SessionStore.
type Store struct {
	conn *sql.DB
}

// New opens (or creates) the session database at path and runs the
// migration. Use ":memory:" in tests.
func New(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows a read while a write is in flight. Overkill for a
	// one-row table, but it is the mode every other tool expects to find.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return s, nil
}

// Close closes the connection pool. Defer it wherever New is called.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	// id is fixed to 1 — the store holds at most one session.
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id            INTEGER PRIMARY KEY CHECK (id = 1),
			auth_id       TEXT NOT NULL,
			email         TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			updated_at    DATETIME NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating sessions table: %w", err)
	}
	return nil
}

// Save stores the session, replacing any previous one — signing in with
// a different account overwrites, it never accumulates.
func (s *Store) Save(ctx context.Context, authID, email, refreshToken string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (id, auth_id, email, refresh_token, updated_at)
		 VALUES (1, ?, ?, ?, ?)`,
		authID, email, refreshToken, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving session for %s: %w", authID, err)
	}
	return nil
}

// Load returns the stored session. No stored session is not an error —
// all three values come back empty (first launch, or after sign-out).
func (s *Store) Load(ctx context.Context) (authID, email, refreshToken string, err error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT auth_id, email, refresh_token FROM sessions WHERE id = 1`)

	if scanErr := row.Scan(&authID, &email, &refreshToken); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return "", "", "", nil
		}
		return "", "", "", fmt.Errorf("sqlite: loading session: %w", scanErr)
	}
	return authID, email, refreshToken, nil
}

// Clear removes the stored session (sign-out, or a revoked token).
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = 1`); err != nil {
		return fmt.Errorf("sqlite: clearing session: %w", err)
	}
	return nil
}
