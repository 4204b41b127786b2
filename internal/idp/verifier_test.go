package idp

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
)

const (
	testIssuer = "https://idp.example.com/realms/demo"
	testKID    = "kid-1"
)

type VerifierSuite struct {
	suite.Suite
	ctx      context.Context
	key      *rsa.PrivateKey
	verifier *Verifier
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupSuite() {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)
	s.key = key
}

func (s *VerifierSuite) SetupTest() {
	s.ctx = context.Background()
	given := keyfunc.NewGiven(map[string]keyfunc.GivenKey{
		testKID: keyfunc.NewGivenCustom(&s.key.PublicKey, keyfunc.GivenKeyOptions{
			Algorithm: "RS256",
		}),
	})
	s.verifier = NewVerifierWithKeyfunc(given.Keyfunc, testIssuer)
}

// sign mints an RS256 token with the given claims and key id.
func (s *VerifierSuite) sign(claims jwt.MapClaims, kid string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(s.key)
	s.Require().NoError(err)
	return signed
}

func (s *VerifierSuite) baseClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":                testIssuer,
		"sub":                "ext-1",
		"preferred_username": "jdoe",
		"email":              "jdoe@example.com",
		"groups":             []string{"staff"},
		"iat":                now.Unix(),
		"exp":                now.Add(time.Hour).Unix(),
	}
}

func (s *VerifierSuite) TestVerify() {
	s.Run("accepts a well-formed token", func() {
		claims, err := s.verifier.Verify(s.ctx, s.sign(s.baseClaims(), testKID))
		s.Require().NoError(err)

		s.Equal("ext-1", claims.Subject)
		s.Equal("jdoe", claims.Username)
		s.Equal("jdoe@example.com", claims.Email)
		s.Equal([]string{"staff"}, claims.Groups)
		s.False(claims.ExpiresAt.IsZero())
	})

	s.Run("rejects an expired token", func() {
		mc := s.baseClaims()
		mc["exp"] = time.Now().Add(-time.Minute).Unix()

		_, err := s.verifier.Verify(s.ctx, s.sign(mc, testKID))
		s.Require().ErrorIs(err, ErrTokenExpired)
	})

	s.Run("rejects a wrong issuer", func() {
		mc := s.baseClaims()
		mc["iss"] = "https://evil.example.com/realms/demo"

		_, err := s.verifier.Verify(s.ctx, s.sign(mc, testKID))
		s.Require().ErrorIs(err, ErrInvalidToken)
	})

	s.Run("rejects an unknown key id", func() {
		_, err := s.verifier.Verify(s.ctx, s.sign(s.baseClaims(), "kid-unknown"))
		s.Require().ErrorIs(err, ErrInvalidToken)
	})

	s.Run("rejects a token without an expiry", func() {
		mc := s.baseClaims()
		delete(mc, "exp")

		_, err := s.verifier.Verify(s.ctx, s.sign(mc, testKID))
		s.Require().ErrorIs(err, ErrInvalidToken)
	})

	s.Run("rejects a missing subject", func() {
		mc := s.baseClaims()
		delete(mc, "sub")

		_, err := s.verifier.Verify(s.ctx, s.sign(mc, testKID))
		s.Require().ErrorIs(err, ErrInvalidToken)
	})

	s.Run("rejects garbage", func() {
		_, err := s.verifier.Verify(s.ctx, "not-a-jwt")
		s.Require().ErrorIs(err, ErrInvalidToken)
	})

	s.Run("rejects the none algorithm", func() {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, s.baseClaims())
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		s.Require().NoError(err)

		_, err = s.verifier.Verify(s.ctx, signed)
		s.Require().ErrorIs(err, ErrInvalidToken)
	})
}
