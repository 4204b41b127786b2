package service

import (
	"context"
	"errors"
	"fmt"

	"autogate/internal/events"
	"autogate/internal/idp"
	"autogate/internal/platform/sentinel"
)

// LogoutRequest identifies the session to terminate. The tokens, when the
// caller still holds them, are forwarded to the IdP's revocation endpoint.
type LogoutRequest struct {
	SessionID    string
	AccessToken  string
	RefreshToken string
	Everywhere   bool
}

// Logout terminates the session: best-effort upstream token revocation, then
// local revocation, then the logout event. Upstream failure never blocks the
// local cleanup; local revocation is idempotent so repeated logouts succeed.
func (s *Service) Logout(ctx context.Context, req LogoutRequest) error {
	sess, err := s.sessions.Find(ctx, req.SessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.metrics.IncLogout("not_found")
		return ErrSessionNotFound
	}
	if err != nil {
		s.metrics.IncLogout("store_error")
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.revokeUpstream(ctx, req.RefreshToken, idp.RefreshToken)
	s.revokeUpstream(ctx, req.AccessToken, idp.AccessToken)

	now := s.now()
	revoked := 1
	if req.Everywhere {
		n, err := s.sessions.RevokeAll(ctx, sess.UserID, now)
		if err != nil {
			s.metrics.IncLogout("store_error")
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		revoked = n
	} else {
		if _, err := s.sessions.Revoke(ctx, req.SessionID, now); err != nil {
			s.metrics.IncLogout("store_error")
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	s.logger.Info("session revoked",
		"session_id", req.SessionID, "user_id", sess.UserID, "everywhere", req.Everywhere, "count", revoked)

	s.publish(ctx, events.Event{
		Action:    events.ActionLogout,
		UserID:    sess.UserID,
		SessionID: sess.ID,
		Reason:    "user_logout",
		Timestamp: now,
	})
	s.metrics.IncLogout("success")
	return nil
}
