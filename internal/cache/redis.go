package cache

import (
	"context"
	"errors"
	"fmt"

	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a redis client. Expiry is delegated to
// redis TTLs, so reads never observe payloads past their window.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.rdb == nil {
		return nil, false, errors.New("cache: redis client is nil")
	}
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if s.rdb == nil {
		return errors.New("cache: redis client is nil")
	}
	if ttl <= 0 {
		return fmt.Errorf("cache: ttl must be > 0 for key %q", key)
	}
	return s.rdb.Set(ctx, key, payload, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if s.rdb == nil {
		return errors.New("cache: redis client is nil")
	}
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// InvalidateTenant scans and deletes every key under the tenant's known
// namespace prefixes. SCAN (not KEYS) keeps redis responsive under load.
func (s *RedisStore) InvalidateTenant(ctx context.Context, tenantID string) error {
	if s.rdb == nil {
		return errors.New("cache: redis client is nil")
	}
	if tenantID == "" {
		return errors.New("cache: tenant id is required")
	}

	var firstErr error
	for _, ns := range allNamespaces {
		match := tenantPrefix(ns, tenantID) + "*"
		iter := s.rdb.Scan(ctx, 0, match, 100).Iterator()

		batch := make([]string, 0, 100)
		for iter.Next(ctx) {
			batch = append(batch, iter.Val())
			if len(batch) >= 100 {
				if err := s.rdb.Del(ctx, batch...).Err(); err != nil && firstErr == nil {
					firstErr = err
				}
				batch = batch[:0]
			}
		}
		if err := iter.Err(); err != nil && firstErr == nil {
			firstErr = err
		}
		if len(batch) > 0 {
			if err := s.rdb.Del(ctx, batch...).Err(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
