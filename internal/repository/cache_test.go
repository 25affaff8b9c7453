package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthien-control/core/internal/cache"
)

type fakeRepository struct {
	apiKeys  map[string]*ClientAPIKey
	policies map[string]*PolicyConfig
	calls    int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{apiKeys: map[string]*ClientAPIKey{}, policies: map[string]*PolicyConfig{}}
}

func (f *fakeRepository) FindAPIKey(_ context.Context, keyValue string) (*ClientAPIKey, error) {
	f.calls++
	return f.apiKeys[keyValue], nil
}

func (f *fakeRepository) FindPolicy(_ context.Context, name string) (*PolicyConfig, error) {
	f.calls++
	return f.policies[name], nil
}

func (f *fakeRepository) ListPolicies(context.Context, bool) ([]*PolicyConfig, error) { return nil, nil }

func (f *fakeRepository) CreatePolicy(_ context.Context, cfg *PolicyConfig) (*PolicyConfig, error) {
	f.policies[cfg.Name] = cfg
	return cfg, nil
}

func (f *fakeRepository) UpdatePolicy(_ context.Context, _ int64, cfg *PolicyConfig) (*PolicyConfig, error) {
	f.policies[cfg.Name] = cfg
	return cfg, nil
}

func TestCachedRepository_FindPolicy_CachesAcrossCalls(t *testing.T) {
	fake := newFakeRepository()
	fake.policies["root"] = &PolicyConfig{Name: "root", Type: "Noop"}

	repo := NewCachedRepository(fake, cache.Config{Mode: cache.ModeMemory})
	ctx := context.Background()

	first, err := repo.FindPolicy(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, "Noop", first.Type)

	_, err = repo.FindPolicy(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)
}

func TestCachedRepository_UpdatePolicy_InvalidatesCache(t *testing.T) {
	fake := newFakeRepository()
	fake.policies["root"] = &PolicyConfig{Name: "root", Type: "Noop"}

	repo := NewCachedRepository(fake, cache.Config{Mode: cache.ModeMemory})
	ctx := context.Background()

	_, err := repo.FindPolicy(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)

	_, err = repo.UpdatePolicy(ctx, 1, &PolicyConfig{Name: "root", Type: "CompoundPolicy"})
	require.NoError(t, err)

	_, err = repo.FindPolicy(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)
}
