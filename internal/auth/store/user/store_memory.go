package user

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"autogate/internal/auth/models"
	"autogate/internal/platform/sentinel"
)

// Memory is the in-memory user store used as the test double.
type Memory struct {
	mu    sync.RWMutex
	users map[string]models.User
}

// NewMemory constructs an empty in-memory user store.
func NewMemory() *Memory {
	return &Memory{users: make(map[string]models.User)}
}

func (m *Memory) Insert(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.ExternalID == u.ExternalID {
			return sentinel.ErrAlreadyUsed
		}
	}
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) Update(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return sentinel.ErrNotFound
	}
	m.users[u.ID] = *u
	return nil
}

func (m *Memory) FindByID(_ context.Context, id string) (*models.User, error) {
	return m.findOne(func(u models.User) bool { return u.ID == id })
}

func (m *Memory) FindByExternalID(_ context.Context, externalID string) (*models.User, error) {
	return m.findOne(func(u models.User) bool { return u.ExternalID == externalID })
}

func (m *Memory) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return m.findOne(func(u models.User) bool { return u.Username == username })
}

func (m *Memory) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return m.findOne(func(u models.User) bool { return u.Email == email })
}

func (m *Memory) findOne(match func(models.User) bool) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if match(u) {
			out := u
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (m *Memory) SetStatus(_ context.Context, id string, status models.UserStatus, modifiedBy string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.Status = status
	u.ModifiedBy = modifiedBy
	u.ModifiedAt = &now
	m.users[id] = u
	return nil
}

func (m *Memory) List(_ context.Context, filter ListFilter) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.User
	for _, u := range m.users {
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		if filter.Keyword != "" && !matchKeyword(u, filter.Keyword) {
			continue
		}
		if filter.Group != "" && !contains(u.Groups, filter.Group) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchKeyword(u models.User, keyword string) bool {
	kw := strings.ToLower(keyword)
	return strings.Contains(strings.ToLower(u.Username), kw) ||
		strings.Contains(strings.ToLower(u.Email), kw) ||
		strings.Contains(strings.ToLower(u.FullName), kw)
}

func contains(groups []string, group string) bool {
	for _, g := range groups {
		if g == group {
			return true
		}
	}
	return false
}
