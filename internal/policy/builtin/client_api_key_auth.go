package builtin

import (
	"context"
	"strings"

	"github.com/luthien-control/core/internal/policy"
	"github.com/luthien-control/core/internal/transaction"
)

// ClientApiKeyAuth extracts a bearer token from the inbound request headers
// and looks it up via the credential repository (C9). A missing header is a
// 401 ClientAuthenticationNotFoundError; an unknown or inactive key is a 401
// ClientAuthenticationError (S6).
type ClientApiKeyAuth struct {
	name string
}

func NewClientApiKeyAuth(name string) *ClientApiKeyAuth {
	if name == "" {
		name = "ClientApiKeyAuth"
	}

	return &ClientApiKeyAuth{name: name}
}

func (p *ClientApiKeyAuth) Name() string { return p.name }

func (p *ClientApiKeyAuth) headers(tx *transaction.Transaction) map[string][]string {
	if req := tx.RawRequest(); req != nil {
		return req.Headers
	}

	return nil
}

func bearerToken(headers map[string][]string) string {
	for key, values := range headers {
		if !strings.EqualFold(key, "Authorization") {
			continue
		}

		for _, v := range values {
			if after, ok := strings.CutPrefix(v, "Bearer "); ok {
				return strings.TrimSpace(after)
			}
		}
	}

	return ""
}

func (p *ClientApiKeyAuth) Apply(ctx context.Context, tx *transaction.Transaction, deps *policy.Container) (*transaction.Transaction, error) {
	if tx.OpenAIRequest() == nil && tx.RawRequest() == nil {
		return nil, policy.NewNoRequestError(p.name)
	}

	token := bearerToken(p.headers(tx))
	if token == "" {
		// An openai_request transaction carries no header map (spec §3 the
		// client auth headers live on the host's decoded request, not on the
		// structured payload); the host is expected to fold the presented
		// bearer token into transaction.Data before invoking the root policy
		// when the request variant is openai_request. Fall back to that.
		if v, ok := tx.GetData("client_bearer_token"); ok {
			token, _ = v.(string)
		}
	}

	if token == "" {
		return nil, policy.NewClientAuthenticationNotFoundError(p.name, "missing Authorization bearer token")
	}

	if deps == nil || deps.Repository == nil {
		return nil, policy.NewClientAuthenticationError(p.name, "no credential repository configured")
	}

	key, err := deps.Repository.FindAPIKey(ctx, token)
	if err != nil {
		return nil, policy.NewClientAuthenticationError(p.name, "credential lookup failed")
	}

	if key == nil || !key.IsActive {
		return nil, policy.NewClientAuthenticationError(p.name, "unknown or inactive client API key")
	}

	tx.SetData("client_api_key", key)

	return tx, nil
}

func (p *ClientApiKeyAuth) Serialize() map[string]any {
	return map[string]any{"type": "ClientApiKeyAuth", "name": p.name}
}

func init() {
	policy.Register("ClientApiKeyAuth", func(_ context.Context, doc map[string]any, _ *policy.Container, _ policy.Loader) (policy.ControlPolicy, error) {
		name, _ := doc["name"].(string)
		return NewClientApiKeyAuth(name), nil
	})
}
