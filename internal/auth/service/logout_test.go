package service

import (
	"errors"

	"autogate/internal/events"
)

func (s *ServiceSuite) TestLogout() {
	s.Run("revokes the session and emits auth.logout", func() {
		view := s.login()

		s.Require().NoError(s.svc.Logout(s.ctx, LogoutRequest{SessionID: view.SessionID}))

		sess, err := s.sessions.Find(s.ctx, view.SessionID)
		s.Require().NoError(err)
		s.True(sess.Revoked)

		event := s.publisher.last()
		s.Equal(events.ActionLogout, event.Action)
		s.Equal(view.SessionID, event.SessionID)
		s.Equal("user_logout", event.Reason)
	})

	s.Run("repeated logout succeeds", func() {
		view := s.login()
		s.Require().NoError(s.svc.Logout(s.ctx, LogoutRequest{SessionID: view.SessionID}))
		s.NoError(s.svc.Logout(s.ctx, LogoutRequest{SessionID: view.SessionID}))
	})

	s.Run("unknown session id", func() {
		err := s.svc.Logout(s.ctx, LogoutRequest{SessionID: "no-such-session"})
		s.Require().ErrorIs(err, ErrSessionNotFound)
	})

	s.Run("forwards tokens to upstream revocation with type hints", func() {
		view := s.login()

		s.Require().NoError(s.svc.Logout(s.ctx, LogoutRequest{
			SessionID:    view.SessionID,
			AccessToken:  "at-1",
			RefreshToken: "rt-1",
		}))
		s.Equal([]string{"refresh:rt-1", "access:at-1"}, s.provider.revoked())
	})

	s.Run("upstream revocation failure never blocks local cleanup", func() {
		view := s.login()
		s.provider.revokeErr = errors.New("idp unreachable")

		s.Require().NoError(s.svc.Logout(s.ctx, LogoutRequest{
			SessionID:   view.SessionID,
			AccessToken: "at-1",
		}))

		sess, err := s.sessions.Find(s.ctx, view.SessionID)
		s.Require().NoError(err)
		s.True(sess.Revoked)
	})
}

func (s *ServiceSuite) TestLogoutEverywhere() {
	s.Run("revokes every active session of the user", func() {
		a := s.login()
		b := s.login()

		s.Require().NoError(s.svc.Logout(s.ctx, LogoutRequest{SessionID: a.SessionID, Everywhere: true}))

		_, err := s.svc.RefreshToken(s.ctx, b.SessionID, "")
		s.Require().ErrorIs(err, ErrSessionNotFound)

		active, err := s.sessions.ListActiveByUser(s.ctx, a.UserID, s.now)
		s.Require().NoError(err)
		s.Empty(active)
	})
}
