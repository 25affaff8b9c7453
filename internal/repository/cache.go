package repository

import (
	"context"
	"errors"
	"time"

	cachepkg "github.com/luthien-control/core/internal/cache"
)

// CachedRepository decorates a Repository with a bounded, time-limited
// lookup cache for FindAPIKey/FindPolicy — the two lookups the orchestrator
// and loader perform on (effectively) every request. Mutations always hit
// the underlying store directly and evict the affected cache entry, so a
// write is visible on the very next read.
type CachedRepository struct {
	Repository
	apiKeys  cachepkg.Cache[*ClientAPIKey]
	policies cachepkg.Cache[*PolicyConfig]
}

const defaultCacheTTL = 30 * time.Second

// NewCachedRepository wraps repo with an in-process cache built from cfg
// (memory, redis, or two-level per internal/cache.Config).
func NewCachedRepository(repo Repository, cfg cachepkg.Config) *CachedRepository {
	return &CachedRepository{
		Repository: repo,
		apiKeys:    cachepkg.NewFromConfig[*ClientAPIKey](cfg),
		policies:   cachepkg.NewFromConfig[*PolicyConfig](cfg),
	}
}

func (c *CachedRepository) FindAPIKey(ctx context.Context, keyValue string) (*ClientAPIKey, error) {
	if cached, err := c.apiKeys.Get(ctx, keyValue); err == nil {
		return cached, nil
	}

	key, err := c.Repository.FindAPIKey(ctx, keyValue)
	if err != nil || key == nil {
		return key, err
	}

	_ = c.apiKeys.Set(ctx, keyValue, key, cachepkg.WithExpiration(defaultCacheTTL))

	return key, nil
}

func (c *CachedRepository) FindPolicy(ctx context.Context, name string) (*PolicyConfig, error) {
	if cached, err := c.policies.Get(ctx, name); err == nil {
		return cached, nil
	}

	cfg, err := c.Repository.FindPolicy(ctx, name)
	if err != nil || cfg == nil {
		return cfg, err
	}

	_ = c.policies.Set(ctx, name, cfg, cachepkg.WithExpiration(defaultCacheTTL))

	return cfg, nil
}

// SaveLog passes audit writes straight through to the underlying store —
// log rows are append-only and never cached.
func (c *CachedRepository) SaveLog(ctx context.Context, entry *LogEntry) error {
	if lr, ok := c.Repository.(LogRepository); ok {
		return lr.SaveLog(ctx, entry)
	}

	return errors.New("repository: underlying store does not support log writes")
}

func (c *CachedRepository) CreatePolicy(ctx context.Context, cfg *PolicyConfig) (*PolicyConfig, error) {
	created, err := c.Repository.CreatePolicy(ctx, cfg)
	if err != nil {
		return nil, err
	}

	_ = c.policies.Delete(ctx, created.Name)

	return created, nil
}

func (c *CachedRepository) UpdatePolicy(ctx context.Context, id int64, cfg *PolicyConfig) (*PolicyConfig, error) {
	updated, err := c.Repository.UpdatePolicy(ctx, id, cfg)
	if err != nil {
		return nil, err
	}

	if updated != nil {
		_ = c.policies.Delete(ctx, updated.Name)
	}

	_ = c.policies.Delete(ctx, cfg.Name)

	return updated, nil
}
