package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"autogate/internal/auth/models"
	"autogate/internal/auth/store/session"
	"autogate/internal/events"
)

func (s *ServiceSuite) TestExpirySweepNothingExpired() {
	s.login()
	n, err := s.svc.ExpirySweep(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *ServiceSuite) TestExpirySweepRevokesOnlyExpired() {
	expired := s.login()
	s.advance(2 * time.Hour)
	valid := s.login()

	n, err := s.svc.ExpirySweep(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	sess, err := s.sessions.Find(s.ctx, expired.SessionID)
	s.Require().NoError(err)
	s.True(sess.Revoked)

	_, err = s.svc.RefreshToken(s.ctx, valid.SessionID, "")
	s.NoError(err)
}

func (s *ServiceSuite) TestExpirySweepEmitsCleanupEvent() {
	view := s.login()
	s.advance(2 * time.Hour)

	_, err := s.svc.ExpirySweep(s.ctx)
	s.Require().NoError(err)

	event := s.publisher.last()
	s.Equal(events.ActionLogout, event.Action)
	s.Equal(view.SessionID, event.SessionID)
	s.Equal("expired", event.Reason)
}

func (s *ServiceSuite) TestExpirySweepSkipsAlreadyRevoked() {
	view := s.login()
	s.advance(2 * time.Hour)
	_, err := s.sessions.Revoke(s.ctx, view.SessionID, s.now)
	s.Require().NoError(err)

	n, err := s.svc.ExpirySweep(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

// logoutDuringSweep revokes every session it lists before returning,
// reproducing a logout landing between the sweep's list and its revoke.
type logoutDuringSweep struct {
	*session.Memory
}

func (l *logoutDuringSweep) ListExpired(ctx context.Context, now time.Time) ([]models.Session, error) {
	out, err := l.Memory.ListExpired(ctx, now)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if _, err := l.Memory.Revoke(ctx, out[i].ID, now); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *ServiceSuite) TestExpirySweepCedesToConcurrentLogout() {
	s.login()
	s.advance(2 * time.Hour)

	racing := New(s.provider, s.verifier, &logoutDuringSweep{Memory: s.sessions}, s.users, s.publisher,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSessionTTL(time.Hour),
		WithClock(func() time.Time { return s.now }),
	)

	before := len(s.publisher.actions())
	n, err := racing.ExpirySweep(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)

	// The session was already terminally logged out; no second logout event.
	s.Len(s.publisher.actions(), before)
}

func (s *ServiceSuite) TestExpirySweepSurvivesPublisherFailure() {
	s.login()
	s.advance(2 * time.Hour)
	s.publisher.err = errors.New("broker unavailable")

	n, err := s.svc.ExpirySweep(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *ServiceSuite) TestExpirySweepRerunIsNoop() {
	s.login()
	s.advance(2 * time.Hour)

	n, err := s.svc.ExpirySweep(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = s.svc.ExpirySweep(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *ServiceSuite) TestSessions() {
	s.Run("lists active sessions and flags the current one", func() {
		a := s.login()
		b := s.login()

		summaries, err := s.svc.Sessions(s.ctx, a.UserID, b.SessionID)
		s.Require().NoError(err)
		s.Require().Len(summaries, 2)

		current := 0
		for _, sum := range summaries {
			if sum.IsCurrent {
				current++
				s.Equal(b.SessionID, sum.SessionID)
			}
		}
		s.Equal(1, current)
	})

	s.Run("excludes revoked sessions", func() {
		a := s.login()
		b := s.login()
		s.Require().NoError(s.svc.Logout(s.ctx, LogoutRequest{SessionID: a.SessionID}))

		summaries, err := s.svc.Sessions(s.ctx, a.UserID, b.SessionID)
		s.Require().NoError(err)

		for _, sum := range summaries {
			s.NotEqual(a.SessionID, sum.SessionID)
		}
	})
}
