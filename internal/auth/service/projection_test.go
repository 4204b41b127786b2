package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"autogate/internal/auth/models"
	"autogate/internal/auth/store/user"
	"autogate/internal/events"
	"autogate/internal/platform/sentinel"
)

func (s *ServiceSuite) TestUserProjection() {
	s.Run("creates projection once for repeated logins", func() {
		a := s.login()
		b := s.login()
		s.Equal(a.UserID, b.UserID)

		u, err := s.users.FindByExternalID(s.ctx, "ext-1")
		s.Require().NoError(err)
		s.Equal("idp-sync", u.CreatedBy)
	})

	s.Run("unchanged claims emit no user event and no write", func() {
		s.login()
		s.login()

		for _, action := range s.publisher.actions() {
			if action == events.ActionUserUpdated {
				s.Fail("unexpected user.updated for identical claims")
			}
		}

		u, err := s.users.FindByExternalID(s.ctx, "ext-1")
		s.Require().NoError(err)
		s.Nil(u.ModifiedAt)
	})

	s.Run("changed claim emits user.updated with only the changed fields", func() {
		s.login()
		s.provider.identity.Email = "jane.doe@example.com"
		s.login()

		var updated *events.Event
		for i := range s.publisher.events {
			if s.publisher.events[i].Action == events.ActionUserUpdated {
				updated = &s.publisher.events[i]
			}
		}
		s.Require().NotNil(updated)
		s.Equal(map[string]string{"email": "jane.doe@example.com"}, updated.Changes)

		u, err := s.users.FindByExternalID(s.ctx, "ext-1")
		s.Require().NoError(err)
		s.Equal("jane.doe@example.com", u.Email)
		s.NotNil(u.ModifiedAt)
	})

	s.Run("absent claims never overwrite stored fields", func() {
		s.login()
		s.provider.identity.FullName = ""
		s.login()

		u, err := s.users.FindByExternalID(s.ctx, "ext-1")
		s.Require().NoError(err)
		s.Equal("Jane Doe", u.FullName)
	})

	s.Run("group membership drift is synced and reported", func() {
		s.login()
		s.provider.identity.Groups = []string{"staff", "admins"}
		s.login()

		u, err := s.users.FindByExternalID(s.ctx, "ext-1")
		s.Require().NoError(err)
		s.ElementsMatch([]string{"staff", "admins"}, u.Groups)

		var updated *events.Event
		for i := range s.publisher.events {
			if s.publisher.events[i].Action == events.ActionUserUpdated {
				updated = &s.publisher.events[i]
			}
		}
		s.Require().NotNil(updated)
		s.Contains(updated.Changes, "groups")
	})
}

// staleReadUserStore misses its first lookups, reproducing two concurrent
// first logins that both fail to find the projection before inserting it.
type staleReadUserStore struct {
	*user.Memory
	misses int
}

func (s *staleReadUserStore) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	if s.misses > 0 {
		s.misses--
		return nil, sentinel.ErrNotFound
	}
	return s.Memory.FindByExternalID(ctx, externalID)
}

func (s *ServiceSuite) TestFirstLoginRaceCreatesOneProjection() {
	users := &staleReadUserStore{Memory: s.users, misses: 2}
	svc := New(s.provider, s.verifier, s.sessions, users, s.publisher,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSessionTTL(time.Hour),
		WithClock(func() time.Time { return s.now }),
	)

	req := LoginRequest{Username: testUsername, Password: testPassword}
	a, err := svc.Login(s.ctx, req)
	s.Require().NoError(err)

	// The loser's insert hits the taken external id and adopts the
	// winner's row instead of failing the login.
	b, err := svc.Login(s.ctx, req)
	s.Require().NoError(err)
	s.Equal(a.UserID, b.UserID)

	created := 0
	for _, action := range s.publisher.actions() {
		if action == events.ActionUserCreated {
			created++
		}
	}
	s.Equal(1, created)
}
