package builtin

import (
	"context"
	"fmt"

	"github.com/luthien-control/core/internal/policy"
	"github.com/luthien-control/core/internal/transaction"
)

// AddApiKeyHeader sets transaction.request.api_key from the configured
// upstream OpenAI key in settings.
type AddApiKeyHeader struct {
	name string
}

func NewAddApiKeyHeader(name string) *AddApiKeyHeader {
	if name == "" {
		name = "AddApiKeyHeader"
	}

	return &AddApiKeyHeader{name: name}
}

func (p *AddApiKeyHeader) Name() string { return p.name }

func (p *AddApiKeyHeader) Apply(_ context.Context, tx *transaction.Transaction, deps *policy.Container) (*transaction.Transaction, error) {
	req := tx.OpenAIRequest()
	if req == nil {
		return nil, policy.NewNoRequestError(p.name)
	}

	apiKey := deps.Settings.OpenAIAPIKey()
	if apiKey == "" {
		return nil, policy.NewApiKeyNotFoundError(p.name, fmt.Sprintf("OpenAI API key not configured (%s)", p.name))
	}

	req.APIKey = apiKey

	return tx, nil
}

func (p *AddApiKeyHeader) Serialize() map[string]any {
	return map[string]any{"type": "AddApiKeyHeader", "name": p.name}
}

// AddApiKeyHeaderFromEnv is AddApiKeyHeader with its source being a named
// environment variable instead of settings' default OpenAI key. The env
// var name must be non-empty at load time (fail fast rather than silently
// reading an empty env var at request time).
type AddApiKeyHeaderFromEnv struct {
	name   string
	envVar string
}

func NewAddApiKeyHeaderFromEnv(name, envVar string) (*AddApiKeyHeaderFromEnv, error) {
	if envVar == "" {
		return nil, policy.NewPolicyLoadError(name, "AddApiKeyHeaderFromEnv requires a non-empty env_var")
	}

	if name == "" {
		name = "AddApiKeyHeaderFromEnv"
	}

	return &AddApiKeyHeaderFromEnv{name: name, envVar: envVar}, nil
}

func (p *AddApiKeyHeaderFromEnv) Name() string { return p.name }

func (p *AddApiKeyHeaderFromEnv) Apply(_ context.Context, tx *transaction.Transaction, deps *policy.Container) (*transaction.Transaction, error) {
	req := tx.OpenAIRequest()
	if req == nil {
		return nil, policy.NewNoRequestError(p.name)
	}

	apiKey := deps.Settings.APIKeyFromEnv(p.envVar)
	if apiKey == "" {
		return nil, policy.NewApiKeyNotFoundError(p.name, fmt.Sprintf("environment variable %s is not set (%s)", p.envVar, p.name))
	}

	req.APIKey = apiKey

	return tx, nil
}

func (p *AddApiKeyHeaderFromEnv) Serialize() map[string]any {
	return map[string]any{"type": "AddApiKeyHeaderFromEnv", "name": p.name, "env_var": p.envVar}
}

func init() {
	policy.Register("AddApiKeyHeader", func(_ context.Context, doc map[string]any, _ *policy.Container, _ policy.Loader) (policy.ControlPolicy, error) {
		name, _ := doc["name"].(string)
		return NewAddApiKeyHeader(name), nil
	})

	policy.Register("AddApiKeyHeaderFromEnv", func(_ context.Context, doc map[string]any, _ *policy.Container, _ policy.Loader) (policy.ControlPolicy, error) {
		name, _ := doc["name"].(string)
		envVar, _ := doc["env_var"].(string)

		return NewAddApiKeyHeaderFromEnv(name, envVar)
	})
}
