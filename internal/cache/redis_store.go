package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/store"
	redis "github.com/redis/go-redis/v9"
)

// redisClient is the subset of *redis.Client the store needs; letting tests
// substitute a miniredis-backed client without pulling in the full
// interface surface.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	FlushAll(ctx context.Context) *redis.StatusCmd
}

// RedisStore is a generic gocache store.StoreInterface backed by
// redis/go-redis/v9, encoding values as JSON. The upstream eko/gocache
// redis store module is not part of this module's dependency set, so this
// is a small, purpose-built adapter covering only what the two repository
// caches need.
type RedisStore[T any] struct {
	client  redisClient
	options *store.Options
}

func NewRedisStore[T any](client redisClient, options ...store.Option) *RedisStore[T] {
	return &RedisStore[T]{client: client, options: store.ApplyOptions(options...)}
}

func (s *RedisStore[T]) Get(ctx context.Context, key any) (any, error) {
	var zero T

	keyStr, ok := key.(string)
	if !ok {
		return zero, store.NotFoundWithCause(fmt.Errorf("cache: expected string key, got %T", key))
	}

	raw, err := s.client.Get(ctx, keyStr).Result()
	if errors.Is(err, redis.Nil) {
		return zero, store.NotFoundWithCause(err)
	}

	if err != nil {
		return zero, err
	}

	var result T
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return zero, fmt.Errorf("cache: decode redis value: %w", err)
	}

	return result, nil
}

func (s *RedisStore[T]) GetWithTTL(ctx context.Context, key any) (any, time.Duration, error) {
	v, err := s.Get(ctx, key)
	return v, 0, err
}

func (s *RedisStore[T]) Set(ctx context.Context, key any, value any, options ...store.Option) error {
	opts := store.ApplyOptionsWithDefault(s.options, options...)

	keyStr, ok := key.(string)
	if !ok {
		return fmt.Errorf("cache: expected string key, got %T", key)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode redis value: %w", err)
	}

	return s.client.Set(ctx, keyStr, raw, opts.Expiration).Err()
}

func (s *RedisStore[T]) Delete(ctx context.Context, key any) error {
	keyStr, ok := key.(string)
	if !ok {
		return fmt.Errorf("cache: expected string key, got %T", key)
	}

	return s.client.Del(ctx, keyStr).Err()
}

func (s *RedisStore[T]) Invalidate(ctx context.Context, _ ...store.InvalidateOption) error {
	return s.client.FlushAll(ctx).Err()
}

func (s *RedisStore[T]) Clear(ctx context.Context) error {
	return s.client.FlushAll(ctx).Err()
}

func (s *RedisStore[T]) GetType() string { return "redis" }
