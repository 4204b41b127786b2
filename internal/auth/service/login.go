package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"autogate/internal/auth/models"
	"autogate/internal/events"
	"autogate/internal/idp"
)

// LoginRequest carries the credentials and request metadata for Login.
type LoginRequest struct {
	Username  string
	Password  string
	IPAddress string
	UserAgent string
}

// Login authenticates the credentials against the IdP, reconciles the local
// user projection, and establishes a new session. Authentication failure
// produces idp.ErrInvalidCredentials with no local side effects.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*SessionView, error) {
	res, err := s.idp.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, idp.ErrInvalidCredentials) {
			s.metrics.IncLogin("invalid_credentials")
			return nil, err
		}
		s.metrics.IncLogin("idp_error")
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	user, err := s.upsertFromIdentity(ctx, res.Identity)
	if err != nil {
		s.metrics.IncLogin("store_error")
		return nil, err
	}

	view, err := s.establishSession(ctx, user, res.AccessToken, req.IPAddress, req.UserAgent)
	if err != nil {
		s.metrics.IncLogin("store_error")
		return nil, err
	}
	s.metrics.IncLogin("success")
	return view, nil
}

// LoginWithToken establishes a session from a bearer token the caller already
// holds, verifying it locally against the IdP's signing keys instead of
// round-tripping a password grant.
func (s *Service) LoginWithToken(ctx context.Context, token, ipAddress, userAgent string) (*SessionView, error) {
	claims, err := s.verifier.Verify(ctx, token)
	if err != nil {
		s.metrics.IncLogin("invalid_token")
		return nil, err
	}

	user, err := s.upsertFromIdentity(ctx, claims.Identity())
	if err != nil {
		s.metrics.IncLogin("store_error")
		return nil, err
	}

	view, err := s.establishSession(ctx, user, token, ipAddress, userAgent)
	if err != nil {
		s.metrics.IncLogin("store_error")
		return nil, err
	}
	s.metrics.IncLogin("success")
	return view, nil
}

// establishSession creates the session record and emits the login event.
// Every call produces a distinct session id even for the same user and
// credential, so concurrent logins never collide.
func (s *Service) establishSession(ctx context.Context, user *models.User, credential, ipAddress, userAgent string) (*SessionView, error) {
	now := s.now()
	sess := &models.Session{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		CredentialHash: hashCredential(credential),
		IPAddress:      ipAddress,
		UserAgent:      userAgent,
		Device:         deviceLabel(userAgent),
		ExpiresAt:      now.Add(s.sessionTTL),
		CreatedAt:      now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.logger.Info("session established",
		"session_id", sess.ID, "user_id", user.ID, "username", user.Username, "expires_at", sess.ExpiresAt)

	s.publish(ctx, events.Event{
		Action:    events.ActionLogin,
		UserID:    user.ID,
		SessionID: sess.ID,
		Email:     user.Email,
		Username:  user.Username,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		ExpiresAt: &sess.ExpiresAt,
		Timestamp: now,
	})

	return &SessionView{
		SessionID:   sess.ID,
		UserID:      user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FullName:    user.FullName,
		ExpiresAt:   sess.ExpiresAt,
		AccessToken: credential,
	}, nil
}
