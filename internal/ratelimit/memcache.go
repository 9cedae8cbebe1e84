package ratelimit

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/rs/zerolog/log"
)

const (
	maxCounters = 100000
)

// MemoryCache keeps counters in-process. Fine for a single replica; counters
// are not shared across instances.
type MemoryCache struct {
	cache *ristretto.Cache[string, *Counter]
}

func NewMemoryCache() *MemoryCache {
	c, err := ristretto.NewCache(&ristretto.Config[string, *Counter]{
		NumCounters: maxCounters,
		MaxCost:     maxCounters,
		BufferItems: 64,
	})

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create rate limit counter cache")
	}

	return &MemoryCache{
		cache: c,
	}
}

func (s *MemoryCache) Get(_ context.Context, key string) (*Counter, bool, error) {
	v, ok := s.cache.Get(key)
	return v, ok, nil
}

func (s *MemoryCache) SetWithTTL(_ context.Context, key string, counter *Counter, ttl time.Duration) error {
	s.cache.SetWithTTL(key, counter, 1, ttl)
	s.cache.Wait()
	return nil
}

func (s *MemoryCache) Delete(_ context.Context, key string) error {
	s.cache.Del(key)
	s.cache.Wait()
	return nil
}
