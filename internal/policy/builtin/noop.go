// Package builtin implements the built-in control policies (C7): identity,
// header injection, model rewrite, leaked-key detection, client auth,
// backend calls, content rewriting, logging, and the two composition
// policies (compound, conditional).
package builtin

import (
	"context"

	"github.com/luthien-control/core/internal/policy"
	"github.com/luthien-control/core/internal/transaction"
)

// Noop returns the transaction unchanged (P3: Noop.apply(t) == t by identity).
type Noop struct {
	name string
}

func NewNoop(name string) *Noop {
	if name == "" {
		name = "Noop"
	}

	return &Noop{name: name}
}

func (p *Noop) Name() string { return p.name }

func (p *Noop) Apply(_ context.Context, tx *transaction.Transaction, _ *policy.Container) (*transaction.Transaction, error) {
	return tx, nil
}

func (p *Noop) Serialize() map[string]any {
	return map[string]any{"type": "Noop", "name": p.name}
}

func init() {
	policy.Register("Noop", func(_ context.Context, doc map[string]any, _ *policy.Container, _ policy.Loader) (policy.ControlPolicy, error) {
		name, _ := doc["name"].(string)
		return NewNoop(name), nil
	})
}
