// Package user persists the local projection of IdP-owned identities.
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"autogate/internal/auth/models"
	"autogate/internal/platform/sentinel"
)

const userColumns = `id, external_id, username, email, full_name, phone, avatar_url, status, groups, created_by, modified_by, created_at, modified_at`

// ListFilter narrows a paginated user listing.
type ListFilter struct {
	Keyword string
	Status  models.UserStatus
	Group   string
	Limit   int
	Offset  int
}

// PostgresStore is the durable user repository.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Insert creates the projection row. Two first logins for the same identity
// can race here; ON CONFLICT DO NOTHING lets the loser detect the taken
// external id via ErrAlreadyUsed and re-fetch the winner's row instead of
// failing the login on a unique violation.
func (s *PostgresStore) Insert(ctx context.Context, u *models.User) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (external_id) DO NOTHING`,
		u.ID, u.ExternalID, u.Username, u.Email, u.FullName, u.Phone, u.AvatarURL,
		string(u.Status), pq.Array(u.Groups), u.CreatedBy, u.ModifiedBy, u.CreatedAt, u.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if n == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

// Update overwrites the profile, group, and audit columns. The external id is
// immutable and deliberately absent from the SET list.
func (s *PostgresStore) Update(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE auth_users
		SET username = $2, email = $3, full_name = $4, phone = $5, avatar_url = $6,
		    status = $7, groups = $8, modified_by = $9, modified_at = $10
		WHERE id = $1`,
		u.ID, u.Username, u.Email, u.FullName, u.Phone, u.AvatarURL,
		string(u.Status), pq.Array(u.Groups), u.ModifiedBy, u.ModifiedAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return s.findOne(ctx, `WHERE external_id = $1`, externalID)
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findOne(ctx, `WHERE username = $1`, username)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, `WHERE email = $1`, email)
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM auth_users `+where, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// SetStatus moves a user between lifecycle states. Deactivation instead of
// deletion keeps the external-id mapping stable.
func (s *PostgresStore) SetStatus(ctx context.Context, id string, status models.UserStatus, modifiedBy string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE auth_users
		SET status = $2, modified_by = $3, modified_at = $4
		WHERE id = $1`,
		id, string(status), modifiedBy, now,
	)
	if err != nil {
		return fmt.Errorf("set user status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set user status: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// List returns a filtered, paginated page of users.
func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]models.User, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM auth_users
		WHERE ($1 = '' OR username ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%' OR full_name ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR $3 = ANY(groups))
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		filter.Keyword, string(filter.Status), filter.Group, limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var status string
	var modifiedAt sql.NullTime
	err := row.Scan(
		&u.ID, &u.ExternalID, &u.Username, &u.Email, &u.FullName, &u.Phone, &u.AvatarURL,
		&status, pq.Array(&u.Groups), &u.CreatedBy, &u.ModifiedBy, &u.CreatedAt, &modifiedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Status = models.UserStatus(status)
	if modifiedAt.Valid {
		u.ModifiedAt = &modifiedAt.Time
	}
	return &u, nil
}
