package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"autogate/internal/events"
	"autogate/internal/idp"
)

func (s *ServiceSuite) TestLogin() {
	s.Run("establishes session with full TTL window", func() {
		view := s.login()

		s.NotEmpty(view.SessionID)
		s.Equal(testToken, view.AccessToken)
		s.Equal(s.now.Add(time.Hour), view.ExpiresAt)
		s.Equal(testUsername, view.Username)

		sess, err := s.sessions.Find(s.ctx, view.SessionID)
		s.Require().NoError(err)
		s.Equal(view.UserID, sess.UserID)
		s.False(sess.Revoked)
	})

	s.Run("concurrent logins get distinct session ids", func() {
		a := s.login()
		b := s.login()
		s.NotEqual(a.SessionID, b.SessionID)
		s.Equal(a.UserID, b.UserID)
	})

	s.Run("invalid credentials leave no trace", func() {
		before := len(s.publisher.actions())

		_, err := s.svc.Login(s.ctx, LoginRequest{Username: testUsername, Password: "wrong"})
		s.Require().ErrorIs(err, idp.ErrInvalidCredentials)
		s.Len(s.publisher.actions(), before)
	})

	s.Run("stores credential fingerprint, never the raw token", func() {
		view := s.login()
		sess, err := s.sessions.Find(s.ctx, view.SessionID)
		s.Require().NoError(err)
		s.NotEmpty(sess.CredentialHash)
		s.NotContains(sess.CredentialHash, testToken)
		s.Len(sess.CredentialHash, 64)
	})

	s.Run("derives device label from user agent", func() {
		view := s.login()
		sess, err := s.sessions.Find(s.ctx, view.SessionID)
		s.Require().NoError(err)
		s.Contains(sess.Device, "Chrome")
	})
}

func (s *ServiceSuite) TestLoginEvents() {
	s.Run("first login emits user.created then auth.login", func() {
		view := s.login()

		actions := s.publisher.actions()
		s.Require().Len(actions, 2)
		s.Equal(events.ActionUserCreated, actions[0])
		s.Equal(events.ActionLogin, actions[1])

		login := s.publisher.last()
		s.Equal(view.SessionID, login.SessionID)
		s.Equal(view.UserID, login.UserID)
		s.Equal("203.0.113.7", login.IPAddress)
		s.Require().NotNil(login.ExpiresAt)
		s.Equal(view.ExpiresAt, *login.ExpiresAt)
	})

	s.Run("repeat login emits auth.login only", func() {
		s.login()
		before := len(s.publisher.actions())
		s.login()
		actions := s.publisher.actions()
		s.Require().Len(actions, before+1)
		s.Equal(events.ActionLogin, actions[len(actions)-1])
	})

	s.Run("publish failure does not fail the login", func() {
		s.publisher.err = errors.New("broker unavailable")
		view := s.login()
		s.NotEmpty(view.SessionID)

		_, err := s.sessions.Find(s.ctx, view.SessionID)
		s.NoError(err)
	})
}

// readbackPublisher looks the session up at publish time, proving the store
// write is visible before the login event leaves the service.
type readbackPublisher struct {
	store    SessionStore
	readable bool
}

func (p *readbackPublisher) Publish(ctx context.Context, event events.Event) error {
	if event.Action == events.ActionLogin {
		_, err := p.store.Find(ctx, event.SessionID)
		p.readable = err == nil
	}
	return nil
}

func (s *ServiceSuite) TestLoginEventFollowsSessionWrite() {
	publisher := &readbackPublisher{store: s.sessions}
	svc := New(s.provider, s.verifier, s.sessions, s.users, publisher,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSessionTTL(time.Hour),
		WithClock(func() time.Time { return s.now }),
	)

	view, err := svc.Login(s.ctx, LoginRequest{Username: testUsername, Password: testPassword})
	s.Require().NoError(err)
	s.NotEmpty(view.SessionID)
	s.True(publisher.readable)
}

func (s *ServiceSuite) TestLoginWithToken() {
	token := "bearer-abc"
	claims := idp.Claims{
		Subject:   "ext-2",
		Username:  "tokenuser",
		Email:     "tokenuser@example.com",
		ExpiresAt: s.now.Add(time.Hour),
	}

	s.Run("establishes session from verified token", func() {
		s.verifier.claims[token] = claims

		view, err := s.svc.LoginWithToken(s.ctx, token, "198.51.100.4", "curl/8.5")
		s.Require().NoError(err)
		s.Equal(token, view.AccessToken)
		s.Equal("tokenuser", view.Username)

		u, err := s.users.FindByExternalID(s.ctx, "ext-2")
		s.Require().NoError(err)
		s.Equal(view.UserID, u.ID)
	})

	s.Run("rejects unverifiable token with no side effects", func() {
		_, err := s.svc.LoginWithToken(s.ctx, "forged", "", "")
		s.Require().ErrorIs(err, idp.ErrInvalidToken)
		_, err = s.users.FindByExternalID(s.ctx, "forged-subject")
		s.Error(err)
	})
}
