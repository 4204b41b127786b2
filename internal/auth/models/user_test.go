package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type UserModelSuite struct {
	suite.Suite
	user User
}

func TestUserModelSuite(t *testing.T) {
	suite.Run(t, new(UserModelSuite))
}

func (s *UserModelSuite) SetupTest() {
	s.user = User{
		ID:       "user-1",
		Username: "jdoe",
		Email:    "jdoe@example.com",
		FullName: "Jane Doe",
		Phone:    "+15550100",
	}
}

func (s *UserModelSuite) TestProfileDiff() {
	s.Run("identical profile yields no changes", func() {
		changes := s.user.ProfileDiff(Profile{
			Username: "jdoe",
			Email:    "jdoe@example.com",
			FullName: "Jane Doe",
			Phone:    "+15550100",
		})
		s.Empty(changes)
	})

	s.Run("reports only the fields that differ", func() {
		changes := s.user.ProfileDiff(Profile{
			Username: "jdoe",
			Email:    "jane@example.com",
			FullName: "Jane Doe",
		})
		s.Equal(map[string]string{"email": "jane@example.com"}, changes)
	})

	s.Run("absent claims never count as changes", func() {
		changes := s.user.ProfileDiff(Profile{})
		s.Empty(changes)
	})
}

func (s *UserModelSuite) TestApplyChanges() {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.user.ApplyChanges(map[string]string{
		"email":     "jane@example.com",
		"full_name": "Jane A. Doe",
	}, "idp-sync", now)

	s.Equal("jane@example.com", s.user.Email)
	s.Equal("Jane A. Doe", s.user.FullName)
	s.Equal("jdoe", s.user.Username)
	s.Equal("idp-sync", s.user.ModifiedBy)
	s.Require().NotNil(s.user.ModifiedAt)
	s.Equal(now, *s.user.ModifiedAt)
}
