package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"autogate/internal/auth/models"
	"autogate/internal/platform/sentinel"
)

const (
	sessionKeyPrefix   = "session:"
	userSessionsPrefix = "user_sessions:"
)

// RedisCache is the cache tier: session records under "session:<id>" with a
// TTL mirroring expiresAt, plus an advisory "user_sessions:<uid>" index set.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps a connected redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func sessionKey(sessionID string) string { return sessionKeyPrefix + sessionID }
func userIndexKey(userID string) string  { return userSessionsPrefix + userID }

func (c *RedisCache) Put(ctx context.Context, sess *models.Session, ttl time.Duration) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, sessionKey(sess.ID), payload, ttl)
	pipe.SAdd(ctx, userIndexKey(sess.UserID), sess.ID)
	pipe.Expire(ctx, userIndexKey(sess.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache session: %w", err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	payload, err := c.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cached session: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal cached session: %w", err)
	}
	return &sess, nil
}

func (c *RedisCache) Delete(ctx context.Context, sessionID, userID string) error {
	pipe := c.client.Pipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	if userID != "" {
		pipe.SRem(ctx, userIndexKey(userID), sessionID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete cached session: %w", err)
	}
	return nil
}

// SessionIDs returns the advisory user->sessions index. Entries may lag the
// durable tier; callers needing authority must query it instead.
func (c *RedisCache) SessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := c.client.SMembers(ctx, userIndexKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list cached user sessions: %w", err)
	}
	return ids, nil
}

var _ Cache = (*RedisCache)(nil)
