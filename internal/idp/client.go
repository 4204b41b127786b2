package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a Keycloak-style IdP adapter: password grant for authentication,
// token revocation, and the published endpoints derived from base URL + realm.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (e.g. custom timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient builds an IdP client for the given realm.
func NewClient(baseURL, realm, clientID, clientSecret string, opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// JWKSURL returns the realm's published key-set endpoint.
func (c *Client) JWKSURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", c.baseURL, c.realm)
}

// Issuer returns the expected iss claim for tokens minted by this realm.
func (c *Client) Issuer() string {
	return fmt.Sprintf("%s/realms/%s", c.baseURL, c.realm)
}

func (c *Client) tokenURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.baseURL, c.realm)
}

func (c *Client) userinfoURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/userinfo", c.baseURL, c.realm)
}

func (c *Client) revokeURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/revoke", c.baseURL, c.realm)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type userinfoResponse struct {
	Sub               string   `json:"sub"`
	PreferredUsername string   `json:"preferred_username"`
	Email             string   `json:"email"`
	Name              string   `json:"name"`
	PhoneNumber       string   `json:"phone_number"`
	Picture           string   `json:"picture"`
	Groups            []string `json:"groups"`
}

// Authenticate performs a password grant and resolves the resulting identity.
// Every upstream rejection normalizes to ErrInvalidCredentials.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*AuthResult, error) {
	form := url.Values{
		"grant_type":    {"password"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"username":      {username},
		"password":      {password},
		"scope":         {"openid"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("idp token request: %w", err)
	}
	defer drain(resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, ErrInvalidCredentials
	default:
		c.logger.Warn("idp token endpoint returned unexpected status",
			"status", resp.StatusCode, "realm", c.realm)
		return nil, fmt.Errorf("idp token endpoint returned %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, ErrInvalidCredentials
	}

	identity, err := c.userinfo(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Identity:    identity,
		AccessToken: tok.AccessToken,
		ExpiresIn:   time.Duration(tok.ExpiresIn) * time.Second,
	}, nil
}

func (c *Client) userinfo(ctx context.Context, accessToken string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoURL(), nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("idp userinfo request: %w", err)
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("idp userinfo endpoint returned unexpected status",
			"status", resp.StatusCode, "realm", c.realm)
		return Identity{}, fmt.Errorf("idp userinfo endpoint returned %d", resp.StatusCode)
	}

	var info userinfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("decode userinfo response: %w", err)
	}

	username := info.PreferredUsername
	if username == "" {
		username = info.Email
	}

	return Identity{
		ExternalID: info.Sub,
		Username:   username,
		Email:      info.Email,
		FullName:   info.Name,
		Phone:      info.PhoneNumber,
		AvatarURL:  info.Picture,
		Groups:     info.Groups,
	}, nil
}

// RevokeToken asks the IdP to revoke a token. Callers treat this as
// best-effort; a failure here must never block local cleanup.
func (c *Client) RevokeToken(ctx context.Context, token string, kind TokenKind) error {
	hint := "access_token"
	if kind == RefreshToken {
		hint = "refresh_token"
	}
	form := url.Values{
		"client_id":       {c.clientID},
		"client_secret":   {c.clientSecret},
		"token":           {token},
		"token_type_hint": {hint},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("idp revoke request: %w", err)
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("idp revoke endpoint returned unexpected status",
			"status", resp.StatusCode, "realm", c.realm, "token_type_hint", hint)
		return fmt.Errorf("idp revoke endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
