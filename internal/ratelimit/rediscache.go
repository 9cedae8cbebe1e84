package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rl:"

// RedisCache keeps counters in redis so that all replicas throttle against
// the same window. Counters are stored as JSON with the TTL on the key.
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (s *RedisCache) Get(ctx context.Context, key string) (*Counter, bool, error) {
	val, err := s.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("rate limit counter read: %w", err)
	}

	counter := &Counter{}
	if err := json.Unmarshal(val, counter); err != nil {
		return nil, false, fmt.Errorf("corrupt rate limit counter %q: %w", key, err)
	}
	return counter, true, nil
}

func (s *RedisCache) SetWithTTL(ctx context.Context, key string, counter *Counter, ttl time.Duration) error {
	val, err := json.Marshal(counter)
	if err != nil {
		return fmt.Errorf("rate limit counter encode: %w", err)
	}

	if err := s.rdb.Set(ctx, redisKeyPrefix+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("rate limit counter write: %w", err)
	}
	return nil
}

func (s *RedisCache) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("rate limit counter delete: %w", err)
	}
	return nil
}
