package reserved

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedStore is a redis read-through cache over a Store. Mint paths hit
// IsReserved on every call, so positive and negative lookups are cached with a
// TTL; Append invalidates the touched keys.
//
// Cache failures degrade to the backing store, never to an error.
type CachedStore struct {
	Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedStore(store Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	return &CachedStore{Store: store, client: client, ttl: ttl, logger: logger}
}

func cacheKey(name string) string { return "reserved:" + name }

func (s *CachedStore) Contains(ctx context.Context, name string) (bool, error) {
	key := cacheKey(name)
	cached, err := s.client.Get(ctx, key).Result()
	if err == nil {
		return cached == "1", nil
	}
	if err != redis.Nil {
		s.logger.WarnContext(ctx, "reserved cache read failed", "error", err)
	}

	ok, err := s.Store.Contains(ctx, name)
	if err != nil {
		return false, err
	}

	val := "0"
	if ok {
		val = "1"
	}
	if err := s.client.Set(ctx, key, val, s.ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "reserved cache write failed", "error", err)
	}
	return ok, nil
}

func (s *CachedStore) Add(ctx context.Context, name string) error {
	if err := s.Store.Add(ctx, name); err != nil {
		return err
	}
	// A stale negative entry would let a freshly reserved name through.
	if err := s.client.Del(ctx, cacheKey(name)).Err(); err != nil {
		s.logger.WarnContext(ctx, "reserved cache invalidation failed", "name", name, "error", err)
	}
	return nil
}
