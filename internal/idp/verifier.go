package idp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates IdP-issued bearer tokens against the realm's published
// key set. Signing keys are resolved by kid and cached by the underlying JWKS
// client; entries refresh on a fixed interval independent of token expiry, so
// verification normally costs no network round trip.
type Verifier struct {
	keyfunc jwt.Keyfunc
	issuer  string
	parser  *jwt.Parser
}

// jwtClaims mirrors the IdP's claim names onto RegisteredClaims.
type jwtClaims struct {
	PreferredUsername string   `json:"preferred_username"`
	Email             string   `json:"email"`
	Groups            []string `json:"groups"`
	jwt.RegisteredClaims
}

// NewVerifier builds a Verifier that fetches the key set from jwksURL. The
// returned Verifier refreshes keys in the background until ctx is cancelled.
func NewVerifier(ctx context.Context, jwksURL, issuer string, logger *slog.Logger) (*Verifier, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx: ctx,
		RefreshErrorHandler: func(err error) {
			logger.Error("jwks background refresh failed", "error", err, "url", jwksURL)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS from %s: %w", jwksURL, err)
	}
	return NewVerifierWithKeyfunc(jwks.Keyfunc, issuer), nil
}

// NewVerifierWithKeyfunc builds a Verifier around an existing key resolver.
// Used by tests with a static key set.
func NewVerifierWithKeyfunc(kf jwt.Keyfunc, issuer string) *Verifier {
	return &Verifier{
		keyfunc: kf,
		issuer:  issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"RS256"}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify checks the token's signature and claims and returns the normalized
// claim set. Returns ErrTokenExpired when exp has elapsed and ErrInvalidToken
// for every other failure.
func (v *Verifier) Verify(_ context.Context, token string) (Claims, error) {
	var claims jwtClaims
	parsed, err := v.parser.ParseWithClaims(token, &claims, v.keyfunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		Subject:  claims.Subject,
		Username: claims.PreferredUsername,
		Email:    claims.Email,
		Groups:   claims.Groups,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
