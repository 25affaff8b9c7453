package builtin

import (
	"context"

	"github.com/luthien-control/core/internal/policy"
	"github.com/luthien-control/core/internal/transaction"
)

// ModelNameReplacement rewrites request.payload.model through a static
// incoming→outgoing map. An empty map is the identity (P4).
type ModelNameReplacement struct {
	name    string
	mapping map[string]string
}

func NewModelNameReplacement(name string, mapping map[string]string) *ModelNameReplacement {
	if name == "" {
		name = "ModelNameReplacement"
	}

	return &ModelNameReplacement{name: name, mapping: mapping}
}

func (p *ModelNameReplacement) Name() string { return p.name }

func (p *ModelNameReplacement) Apply(_ context.Context, tx *transaction.Transaction, _ *policy.Container) (*transaction.Transaction, error) {
	req := tx.OpenAIRequest()
	if req == nil {
		return nil, policy.NewNoRequestError(p.name)
	}

	if req.Payload == nil {
		return tx, nil
	}

	if replacement, ok := p.mapping[req.Payload.Model]; ok {
		req.Payload.Model = replacement
	}

	return tx, nil
}

func (p *ModelNameReplacement) Serialize() map[string]any {
	return map[string]any{"type": "ModelNameReplacement", "name": p.name, "mapping": p.mapping}
}

func init() {
	policy.Register("ModelNameReplacement", func(_ context.Context, doc map[string]any, _ *policy.Container, _ policy.Loader) (policy.ControlPolicy, error) {
		name, _ := doc["name"].(string)

		mapping := map[string]string{}

		switch raw := doc["mapping"].(type) {
		case map[string]string:
			for k, v := range raw {
				mapping[k] = v
			}
		case map[string]any:
			for k, v := range raw {
				if s, ok := v.(string); ok {
					mapping[k] = s
				}
			}
		}

		return NewModelNameReplacement(name, mapping), nil
	})
}
