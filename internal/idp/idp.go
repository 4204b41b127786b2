// Package idp talks to the external identity provider. It owns credential
// verification and the source-of-truth identity claims; this service only
// keeps a local projection.
package idp

import (
	"errors"
	"time"
)

var (
	// ErrInvalidCredentials covers every upstream rejection of a
	// username/password pair. The cause is deliberately not distinguished
	// (user-not-found vs wrong password) to avoid user enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken means the token's signature, issuer, or structure is
	// wrong.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired means the token verified but its exp has elapsed.
	ErrTokenExpired = errors.New("token expired")
)

// TokenKind is the token_type_hint forwarded to the revocation endpoint.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Identity is the normalized view of an IdP user returned by authentication.
type Identity struct {
	ExternalID string
	Username   string
	Email      string
	FullName   string
	Phone      string
	AvatarURL  string
	Groups     []string
}

// Claims is the normalized claim set derived from a verified token. Ephemeral;
// never persisted as-is.
type Claims struct {
	Subject   string
	Username  string
	Email     string
	Groups    []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Identity converts the claim set into the identity shape used by the user
// projection upsert.
func (c Claims) Identity() Identity {
	username := c.Username
	if username == "" {
		username = c.Email
	}
	return Identity{
		ExternalID: c.Subject,
		Username:   username,
		Email:      c.Email,
		Groups:     c.Groups,
	}
}

// AuthResult carries the normalized identity plus the upstream-issued access
// credential handed back to the caller at login.
type AuthResult struct {
	Identity    Identity
	AccessToken string
	ExpiresIn   time.Duration
}
