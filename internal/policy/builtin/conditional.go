package builtin

import (
	"context"

	"github.com/luthien-control/core/internal/condition"
	"github.com/luthien-control/core/internal/policy"
	"github.com/luthien-control/core/internal/transaction"
)

// ConditionalPolicy applies then or else depending on a condition's
// evaluation against the transaction (C5, C7).
type ConditionalPolicy struct {
	name      string
	condition condition.Condition
	then      policy.ControlPolicy
	els       policy.ControlPolicy
}

func NewConditionalPolicy(name string, cond condition.Condition, then, els policy.ControlPolicy) *ConditionalPolicy {
	if name == "" {
		name = "ConditionalPolicy"
	}

	return &ConditionalPolicy{name: name, condition: cond, then: then, els: els}
}

func (p *ConditionalPolicy) Name() string { return p.name }

func (p *ConditionalPolicy) Apply(ctx context.Context, tx *transaction.Transaction, deps *policy.Container) (*transaction.Transaction, error) {
	branch := p.els
	if p.condition.Evaluate(tx) {
		branch = p.then
	}

	if branch == nil {
		return tx, nil
	}

	return branch.Apply(ctx, tx, deps)
}

func (p *ConditionalPolicy) Serialize() map[string]any {
	doc := map[string]any{
		"type":      "ConditionalPolicy",
		"name":      p.name,
		"condition": p.condition.Serialize(),
	}

	if p.then != nil {
		doc["then"] = policy.Serialize(p.then)
	}

	if p.els != nil {
		doc["else"] = policy.Serialize(p.els)
	}

	return doc
}

func init() {
	policy.Register("ConditionalPolicy", func(ctx context.Context, doc map[string]any, _ *policy.Container, load policy.Loader) (policy.ControlPolicy, error) {
		name, _ := doc["name"].(string)

		condDoc, ok := doc["condition"].(map[string]any)
		if !ok {
			return nil, policy.NewPolicyLoadError(name, "ConditionalPolicy: missing or malformed \"condition\"")
		}

		cond, err := condition.FromSerialized(condDoc)
		if err != nil {
			return nil, policy.NewPolicyLoadError(name, err.Error())
		}

		var then, els policy.ControlPolicy

		if thenDoc, ok := doc["then"].(map[string]any); ok {
			then, err = load(ctx, thenDoc)
			if err != nil {
				return nil, err
			}
		}

		if elseDoc, ok := doc["else"].(map[string]any); ok {
			els, err = load(ctx, elseDoc)
			if err != nil {
				return nil, err
			}
		}

		if then == nil && els == nil {
			return nil, policy.NewPolicyLoadError(name, "ConditionalPolicy: at least one of \"then\"/\"else\" is required")
		}

		return NewConditionalPolicy(name, cond, then, els), nil
	})
}
