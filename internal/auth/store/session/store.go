// Package session implements the dual-backed session store: a durable tier
// that is the system of record for audit and recovery, and a cache tier that
// holds a TTL-bound projection for the interactive fast path.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"autogate/internal/auth/models"
	"autogate/internal/platform/metrics"
	"autogate/internal/platform/sentinel"
)

// Durable is the system-of-record port. Implementations classify lifecycle
// misses with sentinel errors (ErrNotFound, ErrExpired, ErrRevoked).
type Durable interface {
	Insert(ctx context.Context, sess *models.Session) error
	FindByID(ctx context.Context, sessionID string) (*models.Session, error)
	// ExtendActive moves the expiry forward iff the session is still active,
	// preserving every other field. Returns the updated record.
	ExtendActive(ctx context.Context, sessionID string, newExpiresAt, now time.Time) (*models.Session, error)
	// MarkRevoked flips the revoked flag iff it is not already set. Reports
	// whether this call performed the transition.
	MarkRevoked(ctx context.Context, sessionID string, now time.Time) (bool, error)
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]models.Session, error)
	ListExpired(ctx context.Context, now time.Time) ([]models.Session, error)
	PurgeRevoked(ctx context.Context, before time.Time) (int64, error)
}

// Cache is the fast-path port. Entries self-expire; the tier is advisory and
// every method failure is survivable.
type Cache interface {
	Put(ctx context.Context, sess *models.Session, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	Delete(ctx context.Context, sessionID, userID string) error
	SessionIDs(ctx context.Context, userID string) ([]string, error)
}

// Dual is the production session store: durable writes are fatal, cache
// writes are best-effort because the durable record remains the recoverable
// source of truth.
type Dual struct {
	durable Durable
	cache   Cache
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// DualOption configures a Dual store.
type DualOption func(*Dual)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) DualOption {
	return func(d *Dual) { d.logger = l }
}

// WithMetrics attaches cache-lookup metrics.
func WithMetrics(m *metrics.Metrics) DualOption {
	return func(d *Dual) { d.metrics = m }
}

// NewDual composes a durable tier with an optional cache tier. A nil cache
// degrades to durable-only operation.
func NewDual(durable Durable, cache Cache, opts ...DualOption) *Dual {
	d := &Dual{
		durable: durable,
		cache:   cache,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Create writes the durable record, then the cache record with TTL mirroring
// the expiry.
func (d *Dual) Create(ctx context.Context, sess *models.Session) error {
	if err := d.durable.Insert(ctx, sess); err != nil {
		return err
	}
	d.cachePut(ctx, sess)
	return nil
}

// Find looks the session up in the cache first, falling back to the durable
// tier on a miss (cold start, or cache eviction under memory pressure).
func (d *Dual) Find(ctx context.Context, sessionID string) (*models.Session, error) {
	if d.cache != nil {
		sess, err := d.cache.Get(ctx, sessionID)
		if err == nil {
			d.metrics.IncCacheLookup("hit")
			return sess, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			d.logger.Warn("session cache read failed, falling back to durable tier",
				"error", err, "session_id", sessionID)
		}
		d.metrics.IncCacheLookup("miss")
	}
	return d.durable.FindByID(ctx, sessionID)
}

// Refresh extends the session expiry in both tiers. The durable update is
// conditional on the session still being active, so a racing revoke wins and
// the caller observes the lifecycle miss instead of resurrecting the session.
func (d *Dual) Refresh(ctx context.Context, sessionID string, newExpiresAt, now time.Time) error {
	updated, err := d.durable.ExtendActive(ctx, sessionID, newExpiresAt, now)
	if err != nil {
		return err
	}
	d.cachePut(ctx, updated)
	return nil
}

// Revoke is idempotent: revoking an already-revoked or already-deleted
// session is not an error. The cache entry is deleted immediately; the
// durable record is marked revoked, not deleted, to preserve the audit trail.
// Reports whether this call performed the transition, so callers racing
// another revoker (sweep vs logout) can tell who won.
func (d *Dual) Revoke(ctx context.Context, sessionID string, now time.Time) (bool, error) {
	sess, err := d.durable.FindByID(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	d.cacheDelete(ctx, sessionID, sess.UserID)

	return d.durable.MarkRevoked(ctx, sessionID, now)
}

// RevokeAll revokes every active session of a user ("logout everywhere").
// Individual failures are logged and skipped so one bad record cannot leave
// the rest of the user's sessions live. Returns the number revoked.
func (d *Dual) RevokeAll(ctx context.Context, userID string, now time.Time) (int, error) {
	sessions, err := d.durable.ListActiveByUser(ctx, userID, now)
	if err != nil {
		return 0, err
	}

	revoked := 0
	for i := range sessions {
		transitioned, err := d.Revoke(ctx, sessions[i].ID, now)
		if err != nil {
			d.logger.Error("failed to revoke session during revoke-all",
				"error", err, "session_id", sessions[i].ID, "user_id", userID)
			continue
		}
		if transitioned {
			revoked++
		}
	}
	return revoked, nil
}

// ListActiveByUser returns the user's live sessions from the durable tier,
// which is authoritative; the cache index is advisory only.
func (d *Dual) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]models.Session, error) {
	return d.durable.ListActiveByUser(ctx, userID, now)
}

// ListExpired queries the durable tier only; cache entries self-expire and
// are not enumerable reliably.
func (d *Dual) ListExpired(ctx context.Context, now time.Time) ([]models.Session, error) {
	return d.durable.ListExpired(ctx, now)
}

func (d *Dual) cachePut(ctx context.Context, sess *models.Session) {
	if d.cache == nil {
		return
	}
	ttl := sess.TTL(time.Now())
	if ttl <= 0 {
		return
	}
	if err := d.cache.Put(ctx, sess, ttl); err != nil {
		d.logger.Warn("session cache write failed",
			"error", err, "session_id", sess.ID, "user_id", sess.UserID)
	}
}

func (d *Dual) cacheDelete(ctx context.Context, sessionID, userID string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Delete(ctx, sessionID, userID); err != nil {
		d.logger.Warn("session cache delete failed",
			"error", err, "session_id", sessionID, "user_id", userID)
	}
}
