package dedup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pcidesk/chat-presence/pkg/log"
)

const defaultRedisKey = "chat:dedup:processed"

// RedisStore keeps processed ids in a sorted set scored by first-processed
// unix milliseconds, so several instances share one dedup view.
type RedisStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
	logger zerolog.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed Store using an existing client.
func NewRedisStore(client *redis.Client, key string, logger zerolog.Logger) *RedisStore {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisStore{
		client: client,
		key:    key,
		now:    time.Now,
		logger: logger.With().Str(log.FieldComponent, "dedup.redis").Logger(),
	}
}

func (s *RedisStore) IsProcessed(ctx context.Context, id string) bool {
	_, err := s.client.ZScore(ctx, s.key, id).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Error().Err(err).Str(log.FieldMessageID, id).Msg("dedup lookup failed")
		}
		return false
	}
	return true
}

// MarkProcessed relies on ZADD NX: the reply counts added members, so only
// the first caller for an id sees 1. A Redis failure counts as a first mark.
func (s *RedisStore) MarkProcessed(ctx context.Context, id string) bool {
	added, err := s.client.ZAddNX(ctx, s.key, redis.Z{
		Score:  float64(s.now().UnixMilli()),
		Member: id,
	}).Result()
	if err != nil {
		s.logger.Error().Err(err).Str(log.FieldMessageID, id).Msg("dedup mark failed")
		return true
	}
	return added == 1
}

// CleanupOlderThan removes members whose score is strictly below the cutoff.
// ZREMRANGEBYSCORE is atomic, so members added during the sweep carry a newer
// score and survive.
func (s *RedisStore) CleanupOlderThan(ctx context.Context, maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge).UnixMilli()

	removed, err := s.client.ZRemRangeByScore(ctx, s.key, "-inf", "("+strconv.FormatInt(cutoff, 10)).Result()
	if err != nil {
		s.logger.Error().Err(fmt.Errorf("redis zremrangebyscore: %w", err)).Msg("dedup cleanup failed")
		return 0
	}
	return int(removed)
}
