package models

import "time"

// Session binds an opaque id to a user and an expiry, representing one
// authenticated device/browser instance. The durable tier is the system of
// record; the cache tier holds a TTL-bound projection of the same record.
//
// State machine: ACTIVE -> REVOKED (terminal) or ACTIVE -> EXPIRED (terminal,
// detected lazily against the clock or by the sweep). There is no transition
// out of REVOKED or EXPIRED.
type Session struct {
	ID             string
	UserID         string
	CredentialHash string
	IPAddress      string
	UserAgent      string
	Device         string
	ExpiresAt      time.Time
	Revoked        bool
	RevokedAt      *time.Time
	CreatedAt      time.Time
}

// Expired reports whether the expiry has passed at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Active reports whether the session is neither revoked nor expired.
func (s *Session) Active(now time.Time) bool {
	return !s.Revoked && !s.Expired(now)
}

// TTL returns the remaining lifetime at the given instant, floored at zero.
// Used to size the cache entry's TTL to mirror ExpiresAt.
func (s *Session) TTL(now time.Time) time.Duration {
	if s.Expired(now) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// ApplyRevocation marks the session revoked. Idempotent.
func (s *Session) ApplyRevocation(now time.Time) {
	if s.Revoked {
		return
	}
	s.Revoked = true
	s.RevokedAt = &now
}

// SessionSummary is the operator/user-facing view of one session, with the
// raw user agent reduced to a display label.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	Device    string    `json:"device"`
	IPAddress string    `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IsCurrent bool      `json:"is_current"`
}

// Summary projects the session into its user-facing view.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		SessionID: s.ID,
		Device:    s.Device,
		IPAddress: s.IPAddress,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}
