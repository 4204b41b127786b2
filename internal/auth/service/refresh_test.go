package service

import (
	"time"

	"autogate/internal/events"
	"autogate/internal/idp"
)

func (s *ServiceSuite) TestRefreshToken() {
	s.Run("slides expiry a full TTL from now", func() {
		view := s.login()
		s.advance(30 * time.Minute)

		refreshed, err := s.svc.RefreshToken(s.ctx, view.SessionID, "")
		s.Require().NoError(err)
		s.Equal(s.now.Add(time.Hour), refreshed.ExpiresAt)

		sess, err := s.sessions.Find(s.ctx, view.SessionID)
		s.Require().NoError(err)
		s.Equal(refreshed.ExpiresAt, sess.ExpiresAt)
	})

	s.Run("emits auth.token_refresh with the new expiry", func() {
		view := s.login()
		_, err := s.svc.RefreshToken(s.ctx, view.SessionID, "")
		s.Require().NoError(err)

		event := s.publisher.last()
		s.Equal(events.ActionTokenRefresh, event.Action)
		s.Equal(view.SessionID, event.SessionID)
		s.Require().NotNil(event.ExpiresAt)
		s.Equal(s.now.Add(time.Hour), *event.ExpiresAt)
	})

	s.Run("unknown session id", func() {
		_, err := s.svc.RefreshToken(s.ctx, "no-such-session", "")
		s.Require().ErrorIs(err, ErrSessionNotFound)
	})

	s.Run("revoked session is terminal", func() {
		view := s.login()
		s.Require().NoError(s.svc.Logout(s.ctx, LogoutRequest{SessionID: view.SessionID}))

		_, err := s.svc.RefreshToken(s.ctx, view.SessionID, "")
		s.Require().ErrorIs(err, ErrSessionNotFound)
	})

	s.Run("expired session is revoked on read", func() {
		view := s.login()
		s.advance(2 * time.Hour)

		_, err := s.svc.RefreshToken(s.ctx, view.SessionID, "")
		s.Require().ErrorIs(err, ErrSessionExpired)

		sess, err := s.sessions.Find(s.ctx, view.SessionID)
		s.Require().NoError(err)
		s.True(sess.Revoked)
	})
}

func (s *ServiceSuite) TestRefreshReverification() {
	s.Run("rejects an unverifiable credential", func() {
		view := s.login()
		_, err := s.svc.RefreshToken(s.ctx, view.SessionID, "forged")
		s.Require().ErrorIs(err, idp.ErrInvalidToken)
	})

	s.Run("accepts a verifiable credential", func() {
		s.verifier.claims["good"] = idp.Claims{Subject: "ext-1", ExpiresAt: s.now.Add(time.Hour)}
		view := s.login()

		refreshed, err := s.svc.RefreshToken(s.ctx, view.SessionID, "good")
		s.Require().NoError(err)
		s.Equal("good", refreshed.AccessToken)
	})

	s.Run("reverification can be disabled", func() {
		svc := s.newService(WithoutCredentialReverify())
		view := s.login()

		_, err := svc.RefreshToken(s.ctx, view.SessionID, "forged")
		s.NoError(err)
	})
}
