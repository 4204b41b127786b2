package service

import (
	"context"
	"errors"
	"fmt"

	"autogate/internal/events"
	"autogate/internal/platform/sentinel"
)

// RefreshToken extends an active session by a full TTL window from now
// (sliding expiry). Revoked sessions are terminal: refresh never resurrects
// them. A session found already past its expiry is revoked on read before the
// expiry error is returned, so the sweep and refresh converge on one state.
func (s *Service) RefreshToken(ctx context.Context, sessionID, credential string) (*SessionView, error) {
	sess, err := s.sessions.Find(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.metrics.IncRefresh("not_found")
		return nil, ErrSessionNotFound
	}
	if err != nil {
		s.metrics.IncRefresh("store_error")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := s.now()
	if sess.Revoked {
		s.metrics.IncRefresh("revoked")
		return nil, ErrSessionNotFound
	}
	if sess.Expired(now) {
		if _, err := s.sessions.Revoke(ctx, sessionID, now); err != nil {
			s.logger.Warn("revoke-on-read failed for expired session",
				"error", err, "session_id", sessionID)
		}
		s.metrics.IncRefresh("expired")
		return nil, ErrSessionExpired
	}

	if s.reverify && credential != "" {
		if _, err := s.verifier.Verify(ctx, credential); err != nil {
			s.metrics.IncRefresh("invalid_token")
			return nil, err
		}
	}

	newExpiresAt := now.Add(s.sessionTTL)
	err = s.sessions.Refresh(ctx, sessionID, newExpiresAt, now)
	switch {
	case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrRevoked):
		// A concurrent logout or sweep won the race; the revoke stands.
		s.metrics.IncRefresh("revoked")
		return nil, ErrSessionNotFound
	case errors.Is(err, sentinel.ErrExpired):
		s.metrics.IncRefresh("expired")
		return nil, ErrSessionExpired
	case err != nil:
		s.metrics.IncRefresh("store_error")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.publish(ctx, events.Event{
		Action:    events.ActionTokenRefresh,
		UserID:    sess.UserID,
		SessionID: sess.ID,
		ExpiresAt: &newExpiresAt,
		Timestamp: now,
	})
	s.metrics.IncRefresh("success")

	return &SessionView{
		SessionID:   sess.ID,
		UserID:      sess.UserID,
		ExpiresAt:   newExpiresAt,
		AccessToken: credential,
	}, nil
}
