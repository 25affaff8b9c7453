package builtin

import (
	"context"

	"github.com/luthien-control/core/internal/policy"
	"github.com/luthien-control/core/internal/transaction"
)

// SetBackend overwrites the request's upstream target with a configured
// base URL. It must NOT concatenate the request path onto it (P7) — the
// value is taken verbatim.
type SetBackend struct {
	name       string
	backendURL string
}

func NewSetBackend(name, backendURL string) *SetBackend {
	if name == "" {
		name = "SetBackend"
	}

	return &SetBackend{name: name, backendURL: backendURL}
}

func (p *SetBackend) Name() string { return p.name }

func (p *SetBackend) Apply(_ context.Context, tx *transaction.Transaction, _ *policy.Container) (*transaction.Transaction, error) {
	if req := tx.OpenAIRequest(); req != nil {
		req.APIEndpoint = p.backendURL
		return tx, nil
	}

	if req := tx.RawRequest(); req != nil {
		req.BackendURL = p.backendURL
		return tx, nil
	}

	return nil, policy.NewNoRequestError(p.name)
}

func (p *SetBackend) Serialize() map[string]any {
	return map[string]any{"type": "SetBackend", "name": p.name, "backend_url": p.backendURL}
}

func init() {
	policy.Register("SetBackend", func(_ context.Context, doc map[string]any, _ *policy.Container, _ policy.Loader) (policy.ControlPolicy, error) {
		name, _ := doc["name"].(string)
		backendURL, _ := doc["backend_url"].(string)

		return NewSetBackend(name, backendURL), nil
	})
}
