package builtin

import (
	"context"

	"github.com/luthien-control/core/internal/policy"
	"github.com/luthien-control/core/internal/tracing"
	"github.com/luthien-control/core/internal/transaction"
)

// CompoundPolicy holds an ordered list of children and applies them in
// order, short-circuiting on the first error — the "all"/sequence
// composition operator (C5, C7).
type CompoundPolicy struct {
	name     string
	policies []policy.ControlPolicy
}

func NewCompoundPolicy(name string, policies []policy.ControlPolicy) *CompoundPolicy {
	if name == "" {
		name = "CompoundPolicy"
	}

	return &CompoundPolicy{name: name, policies: policies}
}

func (p *CompoundPolicy) Name() string { return p.name }

func (p *CompoundPolicy) Policies() []policy.ControlPolicy { return p.policies }

func (p *CompoundPolicy) Apply(ctx context.Context, tx *transaction.Transaction, deps *policy.Container) (*transaction.Transaction, error) {
	var err error

	for _, child := range p.policies {
		spanCtx, span := tracing.StartSpan(ctx, "policy.Apply:"+child.Name())

		tx, err = child.Apply(spanCtx, tx, deps)
		span.End()

		if err != nil {
			return nil, err
		}
	}

	return tx, nil
}

func (p *CompoundPolicy) Serialize() map[string]any {
	docs := make([]any, len(p.policies))
	for i, child := range p.policies {
		docs[i] = policy.Serialize(child)
	}

	return map[string]any{"type": "CompoundPolicy", "name": p.name, "policies": docs}
}

func init() {
	policy.Register("CompoundPolicy", func(ctx context.Context, doc map[string]any, _ *policy.Container, load policy.Loader) (policy.ControlPolicy, error) {
		name, _ := doc["name"].(string)

		raw, _ := doc["policies"].([]any)
		children := make([]policy.ControlPolicy, 0, len(raw))

		for _, item := range raw {
			sub, ok := item.(map[string]any)
			if !ok {
				return nil, policy.NewPolicyLoadError(name, "CompoundPolicy: malformed entry in \"policies\"")
			}

			child, err := load(ctx, sub)
			if err != nil {
				return nil, err
			}

			children = append(children, child)
		}

		return NewCompoundPolicy(name, children), nil
	})
}
