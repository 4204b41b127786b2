package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"autogate/internal/auth/models"
	"autogate/internal/platform/sentinel"
)

const sessionColumns = `session_id, user_id, credential_hash, ip_address, user_agent, device, expires_at, revoked, revoked_at, created_at`

// PostgresStore is the durable tier. Pure I/O; lifecycle rules live in the
// Dual store and the service.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed durable session store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, sess *models.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sess.ID, sess.UserID, sess.CredentialHash, sess.IPAddress, sess.UserAgent,
		sess.Device, sess.ExpiresAt, sess.Revoked, sess.RevokedAt, sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, sessionID string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM auth_sessions
		WHERE session_id = $1`,
		sessionID,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return sess, nil
}

// ExtendActive uses a single conditional UPDATE so a racing revoke or lapsed
// expiry makes the refresh lose, never resurrecting a terminal session.
func (s *PostgresStore) ExtendActive(ctx context.Context, sessionID string, newExpiresAt, now time.Time) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE auth_sessions
		SET expires_at = $2
		WHERE session_id = $1 AND revoked = FALSE AND expires_at > $3
		RETURNING `+sessionColumns,
		sessionID, newExpiresAt, now,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.classifyMiss(ctx, sessionID, now)
	}
	if err != nil {
		return nil, fmt.Errorf("extend session: %w", err)
	}
	return sess, nil
}

// classifyMiss distinguishes why a conditional update matched nothing.
func (s *PostgresStore) classifyMiss(ctx context.Context, sessionID string, now time.Time) error {
	sess, err := s.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Revoked {
		return sentinel.ErrRevoked
	}
	if sess.Expired(now) {
		return sentinel.ErrExpired
	}
	return sentinel.ErrNotFound
}

func (s *PostgresStore) MarkRevoked(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE auth_sessions
		SET revoked = TRUE, revoked_at = $2
		WHERE session_id = $1 AND revoked = FALSE`,
		sessionID, now,
	)
	if err != nil {
		return false, fmt.Errorf("mark session revoked: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark session revoked: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM auth_sessions
		WHERE user_id = $1 AND revoked = FALSE AND expires_at > $2
		ORDER BY created_at DESC`,
		userID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return collectSessions(rows)
}

func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM auth_sessions
		WHERE expires_at < $1 AND revoked = FALSE
		ORDER BY expires_at ASC`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	return collectSessions(rows)
}

// PurgeRevoked deletes revoked rows older than the cutoff. Retention cleanup
// only; the sweep never calls this.
func (s *PostgresStore) PurgeRevoked(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM auth_sessions
		WHERE revoked = TRUE AND revoked_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("purge revoked sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge revoked sessions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var sess models.Session
	var revokedAt sql.NullTime
	err := row.Scan(
		&sess.ID, &sess.UserID, &sess.CredentialHash, &sess.IPAddress, &sess.UserAgent,
		&sess.Device, &sess.ExpiresAt, &sess.Revoked, &revokedAt, &sess.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if revokedAt.Valid {
		sess.RevokedAt = &revokedAt.Time
	}
	return &sess, nil
}

func collectSessions(rows *sql.Rows) ([]models.Session, error) {
	defer rows.Close()
	var out []models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

var _ Durable = (*PostgresStore)(nil)
