package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"

	"github.com/luthien-control/core/internal/chatapi"
	"github.com/luthien-control/core/internal/policy"
	"github.com/luthien-control/core/internal/transaction"
)

// BackendCallSpec parameterizes BackendCall (spec §4.7): a fixed model to
// call, the endpoint to call it at, the env var to source its API key from,
// and a set of request arguments to overlay onto the outgoing payload.
type BackendCallSpec struct {
	Model        string         `mapstructure:"model"`
	APIEndpoint  string         `mapstructure:"api_endpoint"`
	APIKeyEnvVar string         `mapstructure:"api_key_env_var"`
	RequestArgs  map[string]any `mapstructure:"request_args"`
}

// backendCallDoc is the decode target for a BackendCall policy document:
// the spec config fields alongside the policy's own "name" (mapstructure
// decodes the whole config map, including the name key every constructor's
// doc carries per spec §4.6's document format).
type backendCallDoc struct {
	Name string `mapstructure:"name"`
	BackendCallSpec `mapstructure:",squash"`
}

// BackendCall is SendBackendRequest parameterized by a BackendCallSpec: it
// overlays RequestArgs onto the transaction's payload (resolving nested
// dotted paths via sjson, so a spec key like "response_format.type" sets a
// nested field rather than clobbering the whole object), substitutes the
// spec's model/endpoint/credential, and delegates to the same upstream call
// path SendBackendRequest uses.
type BackendCall struct {
	name string
	spec BackendCallSpec
	send *SendBackendRequest
}

func NewBackendCall(name string, spec BackendCallSpec) *BackendCall {
	if name == "" {
		name = "BackendCall"
	}

	return &BackendCall{name: name, spec: spec, send: NewSendBackendRequest(name)}
}

func (p *BackendCall) Name() string { return p.name }

func (p *BackendCall) overlay(payload *chatapi.Request) (*chatapi.Request, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	for path, value := range p.spec.RequestArgs {
		raw, err = sjson.SetBytes(raw, path, value)
		if err != nil {
			return nil, fmt.Errorf("backend_call: overlay %q: %w", path, err)
		}
	}

	if p.spec.Model != "" {
		raw, err = sjson.SetBytes(raw, "model", p.spec.Model)
		if err != nil {
			return nil, err
		}
	}

	var out chatapi.Request
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (p *BackendCall) Apply(ctx context.Context, tx *transaction.Transaction, deps *policy.Container) (*transaction.Transaction, error) {
	req := tx.OpenAIRequest()
	if req == nil {
		return nil, policy.NewNoRequestError(p.name)
	}

	if req.Payload == nil {
		return nil, policy.NewNoRequestError(p.name)
	}

	payload, err := p.overlay(req.Payload)
	if err != nil {
		return nil, policy.NewUpstreamError(p.name, "failed to overlay request_args", err)
	}

	endpoint := req.APIEndpoint
	if p.spec.APIEndpoint != "" {
		endpoint = p.spec.APIEndpoint
	}

	apiKey := req.APIKey

	if p.spec.APIKeyEnvVar != "" {
		if deps == nil || deps.Settings == nil {
			return nil, policy.NewApiKeyNotFoundError(p.name, "no settings available to resolve api_key_env_var")
		}

		apiKey = deps.Settings.APIKeyFromEnv(p.spec.APIKeyEnvVar)
		if apiKey == "" {
			return nil, policy.NewApiKeyNotFoundError(p.name, fmt.Sprintf("environment variable %s is not set", p.spec.APIKeyEnvVar))
		}
	}

	overlaid := &transaction.OpenAIRequest{Payload: payload, APIEndpoint: endpoint, APIKey: apiKey}

	return p.send.applyOpenAI(ctx, tx, overlaid, deps)
}

func (p *BackendCall) Serialize() map[string]any {
	return map[string]any{
		"type":            "BackendCall",
		"name":            p.name,
		"model":           p.spec.Model,
		"api_endpoint":    p.spec.APIEndpoint,
		"api_key_env_var": p.spec.APIKeyEnvVar,
		"request_args":    p.spec.RequestArgs,
	}
}

func init() {
	policy.Register("BackendCall", func(_ context.Context, doc map[string]any, _ *policy.Container, _ policy.Loader) (policy.ControlPolicy, error) {
		decoded, err := policy.DecodeConfig[backendCallDoc](doc)
		if err != nil {
			name, _ := doc["name"].(string)
			return nil, policy.NewPolicyLoadError(name, fmt.Sprintf("BackendCall: %v", err))
		}

		return NewBackendCall(decoded.Name, decoded.BackendCallSpec), nil
	})
}
