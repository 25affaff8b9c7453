// Package cache provides a generic memory/Redis/two-level lookup cache
// used to front the credential and policy repositories (C9). This is not
// response caching — the engine's non-goals explicitly exclude that; this
// only caches repository lookups the loader and client-auth policy make on
// (effectively) every request.
package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	cachelib "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	gocache "github.com/patrickmn/go-cache"
	redis "github.com/redis/go-redis/v9"

	"github.com/luthien-control/core/internal/log"
)

// Cache aliases the gocache CacheInterface: Get/Set/Delete/Invalidate/
// Clear/GetType, generic over the cached value type.
type Cache[T any] = cachelib.CacheInterface[T]

type SetterCache[T any] = cachelib.SetterCacheInterface[T]

// NewMemory builds a pure in-memory cache on top of patrickmn/go-cache.
func NewMemory[T any](client *gocache.Cache, options ...Option) SetterCache[T] {
	s := gocache_store.NewGoCache(client, options...)
	return cachelib.New[T](s)
}

// NewRedis builds a pure Redis cache over a *redis.Client.
func NewRedis[T any](client *redis.Client, options ...Option) SetterCache[T] {
	s := NewRedisStore[T](client, options...)
	return cachelib.New[T](s)
}

// NewTwoLevel chains a memory cache in front of a Redis cache: reads check
// memory first, writes populate both.
func NewTwoLevel[T any](memory, redisCache SetterCache[T]) Cache[T] {
	return cachelib.NewChain[T](memory, redisCache)
}

// NewFromConfig builds a typed cache from Config. An empty Mode yields a
// cache that never hits (every Get misses, every Set/Delete is a no-op) —
// callers still get correct results, just always from the repository.
func NewFromConfig[T any](cfg Config) Cache[T] {
	if cfg.Mode == "" {
		return noop[T]{}
	}

	memExpiration := defaultIfZero(cfg.Memory.Expiration, 5*time.Minute)
	memCleanup := defaultIfZero(cfg.Memory.CleanupInterval, 10*time.Minute)

	memStore := gocache_store.NewGoCache(gocache.New(memExpiration, memCleanup), store.WithExpiration(memExpiration))
	mem := cachelib.New[T](memStore)

	var rds SetterCache[T]

	if (cfg.Redis.Addr != "" || cfg.Redis.URL != "") && cfg.Mode != ModeMemory {
		opts, err := newRedisOptions(cfg.Redis)
		if err != nil {
			panic(fmt.Errorf("cache: invalid redis config: %w", err))
		}

		client := redis.NewClient(opts)

		redisExpiration := defaultIfZero(cfg.Redis.Expiration, 30*time.Minute)
		rds = cachelib.New[T](NewRedisStore[T](client, store.WithExpiration(redisExpiration)))
	}

	switch cfg.Mode {
	case ModeTwoLevel:
		if rds != nil {
			log.Info(context.Background(), "cache: using two-level memory+redis")
			return cachelib.NewChain[T](mem, rds)
		}

		return mem
	case ModeRedis:
		if rds == nil {
			panic(errors.New("cache: redis mode requires redis addr or url"))
		}

		return rds
	case ModeMemory:
		return mem
	default:
		return noop[T]{}
	}
}

func defaultIfZero(d, def time.Duration) time.Duration {
	if d == 0 {
		return def
	}

	return d
}

func newRedisOptions(cfg RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{}

	switch {
	case cfg.URL != "":
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}

		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return nil, fmt.Errorf("unsupported redis scheme: %s", u.Scheme)
		}

		if u.Host == "" {
			return nil, errors.New("redis url missing host")
		}

		opts.Addr = u.Host

		if u.User != nil {
			opts.Username = u.User.Username()
			if pwd, ok := u.User.Password(); ok {
				opts.Password = pwd
			}
		}

		if path := strings.TrimPrefix(u.Path, "/"); path != "" {
			db, err := strconv.Atoi(path)
			if err != nil {
				return nil, fmt.Errorf("invalid redis db in url: %w", err)
			}

			opts.DB = db
		}

		if u.Scheme == "rediss" {
			opts.TLSConfig = &tls.Config{InsecureSkipVerify: cfg.TLSInsecureSkipVerify}
		}
	case cfg.Addr != "":
		opts.Addr = strings.TrimSpace(cfg.Addr)
	default:
		return nil, errors.New("redis addr or url is required")
	}

	if cfg.Username != "" {
		opts.Username = cfg.Username
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	if cfg.TLS && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: cfg.TLSInsecureSkipVerify}
	}

	return opts, nil
}

// noop satisfies Cache[T] and always misses; used when caching is disabled.
type noop[T any] struct{}

func (noop[T]) Get(context.Context, any) (T, error) {
	var zero T
	return zero, store.NotFoundWithCause(errors.New("cache: disabled"))
}

func (noop[T]) Set(context.Context, any, T, ...store.Option) error { return nil }
func (noop[T]) Delete(context.Context, any) error                  { return nil }
func (noop[T]) Invalidate(context.Context, ...store.InvalidateOption) error { return nil }
func (noop[T]) Clear(context.Context) error                        { return nil }
func (noop[T]) GetType() string                                    { return "noop" }
