package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return db, nil
}

// schema is applied at startup. Statements are idempotent so repeated boots
// are safe; anything beyond additive DDL needs a real migration.
const schema = `
CREATE TABLE IF NOT EXISTS auth_users (
	id          TEXT PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE,
	username    TEXT NOT NULL,
	email       TEXT NOT NULL DEFAULT '',
	full_name   TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL DEFAULT '',
	avatar_url  TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'ACTIVE',
	groups      TEXT[] NOT NULL DEFAULT '{}',
	created_by  TEXT NOT NULL DEFAULT '',
	modified_by TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	modified_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS auth_users_username_idx ON auth_users (username);
CREATE INDEX IF NOT EXISTS auth_users_email_idx ON auth_users (email);

CREATE TABLE IF NOT EXISTS auth_sessions (
	session_id      TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	credential_hash TEXT NOT NULL DEFAULT '',
	ip_address      TEXT NOT NULL DEFAULT '',
	user_agent      TEXT NOT NULL DEFAULT '',
	device          TEXT NOT NULL DEFAULT '',
	expires_at      TIMESTAMPTZ NOT NULL,
	revoked         BOOLEAN NOT NULL DEFAULT FALSE,
	revoked_at      TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS auth_sessions_user_idx ON auth_sessions (user_id) WHERE revoked = FALSE;
CREATE INDEX IF NOT EXISTS auth_sessions_expiry_idx ON auth_sessions (expires_at) WHERE revoked = FALSE;
`

// EnsureSchema applies the embedded DDL.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
