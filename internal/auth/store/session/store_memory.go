package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"autogate/internal/auth/models"
	"autogate/internal/platform/sentinel"
)

// Memory is the in-memory session store used as the test double and for
// single-process development. It mirrors the Dual store's semantics: same
// lifecycle sentinels, same idempotent revoke, same conditional refresh.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// NewMemory constructs an empty in-memory session store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]models.Session)}
}

func (m *Memory) Create(_ context.Context, sess *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = *sess
	return nil
}

func (m *Memory) Find(_ context.Context, sessionID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := sess
	return &out, nil
}

func (m *Memory) Refresh(_ context.Context, sessionID string, newExpiresAt, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if sess.Revoked {
		return sentinel.ErrRevoked
	}
	if sess.Expired(now) {
		return sentinel.ErrExpired
	}
	sess.ExpiresAt = newExpiresAt
	m.sessions[sessionID] = sess
	return nil
}

func (m *Memory) Revoke(_ context.Context, sessionID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok || sess.Revoked {
		return false, nil
	}
	sess.ApplyRevocation(now)
	m.sessions[sessionID] = sess
	return true, nil
}

func (m *Memory) RevokeAll(_ context.Context, userID string, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	revoked := 0
	for id, sess := range m.sessions {
		if sess.UserID != userID || sess.Revoked || sess.Expired(now) {
			continue
		}
		sess.ApplyRevocation(now)
		m.sessions[id] = sess
		revoked++
	}
	return revoked, nil
}

func (m *Memory) ListExpired(_ context.Context, now time.Time) ([]models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Session
	for _, sess := range m.sessions {
		if !sess.Revoked && sess.Expired(now) {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

// ListActiveByUser mirrors the durable tier's query; used by Sessions views.
func (m *Memory) ListActiveByUser(_ context.Context, userID string, now time.Time) ([]models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Session
	for _, sess := range m.sessions {
		if sess.UserID == userID && sess.Active(now) {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
