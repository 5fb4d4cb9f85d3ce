package activity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "chat:activity:"

// RedisStore keeps last-activity timestamps as unix milliseconds under
// per-user keys. Keys expire after ttl so idle users drop out.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed activity store. A zero ttl keeps keys
// forever.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) keyFor(userID string) string {
	return s.prefix + userID
}

func (s *RedisStore) LastActivity(ctx context.Context, userID string) (time.Time, error) {
	val, err := s.client.Get(ctx, s.keyFor(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("redis get activity: %w", err)
	}

	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse activity timestamp: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func (s *RedisStore) Touch(ctx context.Context, userID string, at time.Time) error {
	if err := s.client.Set(ctx, s.keyFor(userID), at.UnixMilli(), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set activity: %w", err)
	}
	return nil
}
