// Package events defines the auth domain events and their publisher port.
// Events are append-only and fire-and-forget from the orchestrator's
// perspective: consumers must be idempotent on (action, session id,
// timestamp), and a publish failure never fails the primary operation.
package events

import "time"

// Action identifies the state transition an event describes.
type Action string

const (
	ActionLogin        Action = "auth.login"
	ActionLogout       Action = "auth.logout"
	ActionTokenRefresh Action = "auth.token_refresh"
	ActionUserCreated  Action = "user.created"
	ActionUserUpdated  Action = "user.updated"
)

// Event is one auth domain event. Optional fields are populated per action:
// login carries identity and client metadata, user.updated carries exactly
// the changed field set, refresh carries the new expiry.
type Event struct {
	Action    Action            `json:"action"`
	UserID    string            `json:"user_id"`
	SessionID string            `json:"session_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	Username  string            `json:"username,omitempty"`
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Changes   map[string]string `json:"changes,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
