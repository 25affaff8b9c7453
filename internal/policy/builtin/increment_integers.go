package builtin

import (
	"context"
	"regexp"
	"strconv"

	"github.com/luthien-control/core/internal/policy"
	"github.com/luthien-control/core/internal/transaction"
)

var integerLiteral = regexp.MustCompile(`-?\d+`)

// IncrementIntegers is the demonstration content transformer spec §4.7
// names: every integer literal in assistant message content is rewritten
// +1. In streaming mode it wraps the response iterator and transforms each
// delta's content field as it passes through (S5); in buffered mode it
// rewrites every choice's message content directly.
type IncrementIntegers struct {
	name string
}

func NewIncrementIntegers(name string) *IncrementIntegers {
	if name == "" {
		name = "IncrementIntegers"
	}

	return &IncrementIntegers{name: name}
}

func (p *IncrementIntegers) Name() string { return p.name }

func incrementAllIntegers(content string) (string, error) {
	return integerLiteral.ReplaceAllStringFunc(content, func(match string) string {
		n, err := strconv.Atoi(match)
		if err != nil {
			return match
		}

		return strconv.Itoa(n + 1)
	}), nil
}

func (p *IncrementIntegers) Apply(_ context.Context, tx *transaction.Transaction, _ *policy.Container) (*transaction.Transaction, error) {
	if tx.OpenAIRequest() == nil && tx.RawRequest() == nil {
		return nil, policy.NewNoRequestError(p.name)
	}

	if !tx.HasResponse() {
		return tx, nil
	}

	if err := policy.ApplyStreaming(tx, incrementAllIntegers); err != nil {
		return nil, err
	}

	return tx, nil
}

func (p *IncrementIntegers) Serialize() map[string]any {
	return map[string]any{"type": "IncrementIntegers", "name": p.name}
}

func init() {
	policy.Register("IncrementIntegers", func(_ context.Context, doc map[string]any, _ *policy.Container, _ policy.Loader) (policy.ControlPolicy, error) {
		name, _ := doc["name"].(string)
		return NewIncrementIntegers(name), nil
	})
}
