package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthien-control/core/internal/policy"
	"github.com/luthien-control/core/internal/repository"
	"github.com/luthien-control/core/internal/xjson"
)

// Every registered leaf policy round-trips through serialize → load →
// serialize without observable change.
func TestSerializeLoadRoundTrip(t *testing.T) {
	docs := []map[string]any{
		{"type": "Noop", "name": "n"},
		{"type": "SetBackend", "name": "sb", "backend_url": "https://api.openai.com"},
		{"type": "ModelNameReplacement", "name": "mr", "mapping": map[string]any{"fake": "gpt-4o"}},
		{"type": "LeakedApiKeyDetection", "name": "leak", "patterns": []any{"sk-[a-zA-Z0-9]{48}"}},
		{"type": "AddApiKeyHeader", "name": "key"},
		{"type": "AddApiKeyHeaderFromEnv", "name": "env-key", "env_var": "UPSTREAM_API_KEY"},
		{"type": "ClientApiKeyAuth", "name": "auth"},
		{"type": "SendBackendRequest", "name": "call"},
		{"type": "IncrementIntegers", "name": "inc"},
		{"type": "TransactionContextLogging", "name": "dump", "level": "debug"},
	}

	ctx := context.Background()

	for _, doc := range docs {
		t.Run(doc["type"].(string), func(t *testing.T) {
			first, err := policy.Load(ctx, doc, nil)
			require.NoError(t, err)

			serialized := policy.Serialize(first)

			second, err := policy.Load(ctx, serialized, nil)
			require.NoError(t, err)

			assert.True(t, xjson.Equal(serialized, policy.Serialize(second)))
			assert.Equal(t, first.Name(), second.Name())
		})
	}
}

func compositeDoc() map[string]any {
	return map[string]any{
		"type": "CompoundPolicy",
		"name": "root",
		"policies": []any{
			map[string]any{"type": "ClientApiKeyAuth", "name": "auth"},
			map[string]any{
				"type": "ConditionalPolicy",
				"name": "branch",
				"condition": map[string]any{
					"type":  "equals",
					"left":  map[string]any{"type": "transaction_path", "path": "request.payload.model"},
					"right": map[string]any{"type": "static", "value": "gpt-4o"},
				},
				"then": map[string]any{"type": "SetBackend", "name": "primary", "backend_url": "https://api.openai.com"},
				"else": map[string]any{"type": "SetBackend", "name": "fallback", "backend_url": "https://fallback.example"},
			},
			map[string]any{"type": "AddApiKeyHeader", "name": "key"},
			map[string]any{"type": "SendBackendRequest", "name": "call"},
		},
	}
}

func TestCompositeTreeRoundTrip(t *testing.T) {
	ctx := context.Background()

	first, err := policy.Load(ctx, compositeDoc(), nil)
	require.NoError(t, err)

	serialized := policy.Serialize(first)

	second, err := policy.Load(ctx, serialized, nil)
	require.NoError(t, err)

	assert.True(t, xjson.Equal(serialized, policy.Serialize(second)))

	compound, ok := second.(*CompoundPolicy)
	require.True(t, ok)
	require.Len(t, compound.Policies(), 4)
	assert.Equal(t, "auth", compound.Policies()[0].Name())
	assert.Equal(t, "branch", compound.Policies()[1].Name())
}

func TestLoad_UnknownTypeIsLoadError(t *testing.T) {
	_, err := policy.Load(context.Background(), map[string]any{"type": "NoSuchPolicy"}, nil)
	require.Error(t, err)

	cpErr, ok := err.(*policy.ControlPolicyError)
	require.True(t, ok)
	assert.Contains(t, cpErr.Detail, "NoSuchPolicy")
}

func TestLoad_MalformedConfigIsLoadError(t *testing.T) {
	_, err := policy.Load(context.Background(), map[string]any{"type": "Noop", "config": "not a map"}, nil)
	assert.Error(t, err)
}

// A document in the DB row shape ({type, name, config}) keeps its promoted
// name when the constructor only sees the config map.
func TestLoad_NamePromotedOutOfConfigIsPreserved(t *testing.T) {
	doc := map[string]any{
		"type":   "SetBackend",
		"name":   "via-db",
		"config": map[string]any{"backend_url": "https://upstream.example"},
	}

	p, err := policy.Load(context.Background(), doc, nil)
	require.NoError(t, err)
	assert.Equal(t, "via-db", p.Name())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "root.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"type": "CompoundPolicy",
		"name": "root",
		"policies": [
			{"type": "Noop", "name": "noop"},
			{"type": "SetBackend", "name": "sb", "backend_url": "https://upstream.example"}
		]
	}`), 0o600))

	p, err := policy.LoadFromFile(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "root", p.Name())
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := policy.LoadFromFile(context.Background(), filepath.Join(t.TempDir(), "nope.json"), nil)
	assert.Error(t, err)
}

type policyStoreStub struct {
	fakeRepository
	policies map[string]*repository.PolicyConfig
}

func (s *policyStoreStub) FindPolicy(_ context.Context, name string) (*repository.PolicyConfig, error) {
	return s.policies[name], nil
}

func TestLoadFromDB(t *testing.T) {
	store := &policyStoreStub{policies: map[string]*repository.PolicyConfig{
		"root": {
			Name:     "root",
			Type:     "SetBackend",
			Config:   map[string]any{"backend_url": "https://upstream.example"},
			IsActive: true,
		},
	}}

	p, err := policy.LoadFromDB(context.Background(), store, "root", nil)
	require.NoError(t, err)
	assert.Equal(t, "root", p.Name())

	_, err = policy.LoadFromDB(context.Background(), store, "missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
