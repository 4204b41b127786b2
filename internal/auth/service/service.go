// Package service implements the authentication session lifecycle: login,
// token refresh, logout, and the periodic expiry sweep. It reconciles three
// independently-owned stores (the external IdP, the session store's cache and
// durable tiers) and publishes a domain event per transition.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/mssola/useragent"

	"autogate/internal/auth/models"
	"autogate/internal/events"
	"autogate/internal/idp"
	"autogate/internal/platform/metrics"
)

var (
	// ErrSessionNotFound means no active session exists for the given id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired means the session's expiry has passed.
	ErrSessionExpired = errors.New("session expired")
	// ErrStoreUnavailable means the durable tier rejected a primary write.
	// Fatal to the calling operation.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// IdentityProvider authenticates credentials and revokes tokens upstream.
type IdentityProvider interface {
	Authenticate(ctx context.Context, username, password string) (*idp.AuthResult, error)
	RevokeToken(ctx context.Context, token string, kind idp.TokenKind) error
}

// TokenVerifier validates IdP-issued bearer tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (idp.Claims, error)
}

// SessionStore is the session lifecycle port. The production implementation
// is the dual-write cache+durable store; tests use the in-memory one.
type SessionStore interface {
	Create(ctx context.Context, sess *models.Session) error
	Find(ctx context.Context, sessionID string) (*models.Session, error)
	Refresh(ctx context.Context, sessionID string, newExpiresAt, now time.Time) error
	// Revoke reports whether this call performed the revoke transition;
	// false with a nil error means the session was already gone or revoked.
	Revoke(ctx context.Context, sessionID string, now time.Time) (bool, error)
	RevokeAll(ctx context.Context, userID string, now time.Time) (int, error)
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]models.Session, error)
	ListExpired(ctx context.Context, now time.Time) ([]models.Session, error)
}

// UserStore is the local user projection port.
type UserStore interface {
	Insert(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

// Service is the auth orchestrator. All collaborators arrive via the
// constructor; there is no ambient global state.
type Service struct {
	idp      IdentityProvider
	verifier TokenVerifier
	sessions SessionStore
	users    UserStore
	events   events.Publisher

	logger  *slog.Logger
	metrics *metrics.Metrics

	sessionTTL    time.Duration
	revokeTimeout time.Duration
	sweepWorkers  int
	reverify      bool
	now           func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSessionTTL sets the fixed session lifetime window.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) { s.sessionTTL = ttl }
}

// WithUpstreamRevokeTimeout bounds best-effort IdP revocation calls.
func WithUpstreamRevokeTimeout(d time.Duration) Option {
	return func(s *Service) { s.revokeTimeout = d }
}

// WithSweepWorkers bounds the expiry sweep's concurrency.
func WithSweepWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sweepWorkers = n
		}
	}
}

// WithoutCredentialReverify disables upstream re-verification of the
// credential supplied on refresh.
func WithoutCredentialReverify() Option {
	return func(s *Service) { s.reverify = false }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New builds the orchestrator from its four collaborators.
func New(provider IdentityProvider, verifier TokenVerifier, sessions SessionStore, users UserStore, publisher events.Publisher, opts ...Option) *Service {
	s := &Service{
		idp:           provider,
		verifier:      verifier,
		sessions:      sessions,
		users:         users,
		events:        publisher,
		logger:        slog.Default(),
		sessionTTL:    time.Hour,
		revokeTimeout: 3 * time.Second,
		sweepWorkers:  8,
		reverify:      true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionView is the caller-facing result of Login and RefreshToken.
type SessionView struct {
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	Email       string    `json:"email,omitempty"`
	FullName    string    `json:"full_name,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	AccessToken string    `json:"access_token,omitempty"`
}

// publish emits one auth event. Publish failure is swallowed here: logged
// with enough context to reconstruct the missed side effect, counted, and
// never propagated to the primary operation.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.metrics.IncEventsDropped()
		s.logger.Error("auth event publish failed, dropping",
			"error", err,
			"action", event.Action,
			"user_id", event.UserID,
			"session_id", event.SessionID,
		)
	}
}

// revokeUpstream asks the IdP to revoke a token on an independent timeout
// derived from a non-cancellable context, so upstream unavailability can
// never block or cancel local cleanup.
func (s *Service) revokeUpstream(ctx context.Context, token string, kind idp.TokenKind) {
	if token == "" {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.revokeTimeout)
	defer cancel()
	if err := s.idp.RevokeToken(rctx, token, kind); err != nil {
		s.logger.Warn("upstream token revocation failed, continuing local cleanup",
			"error", err, "kind", string(kind))
	}
}

// hashCredential returns the SHA-256 hex fingerprint stored in place of the
// raw credential.
func hashCredential(credential string) string {
	if credential == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// deviceLabel reduces a raw user agent to a short display label.
func deviceLabel(rawUA string) string {
	if rawUA == "" {
		return ""
	}
	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()
	os := ua.OS()
	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	default:
		return os
	}
}
