package condition

import "github.com/luthien-control/core/internal/transaction"

// allCondition is true iff every sub-condition is true (vacuously true for
// an empty list).
type allCondition struct {
	conditions []Condition
}

func NewAll(conditions ...Condition) Condition {
	return &allCondition{conditions: conditions}
}

func (c *allCondition) Type() string { return "all" }

func (c *allCondition) Evaluate(tx *transaction.Transaction) bool {
	for _, sub := range c.conditions {
		if !sub.Evaluate(tx) {
			return false
		}
	}

	return true
}

func (c *allCondition) Serialize() map[string]any {
	return map[string]any{"type": "all", "conditions": serializeAll(c.conditions)}
}

// anyCondition is true iff at least one sub-condition is true (vacuously
// false for an empty list).
type anyCondition struct {
	conditions []Condition
}

func NewAny(conditions ...Condition) Condition {
	return &anyCondition{conditions: conditions}
}

func (c *anyCondition) Type() string { return "any" }

func (c *anyCondition) Evaluate(tx *transaction.Transaction) bool {
	for _, sub := range c.conditions {
		if sub.Evaluate(tx) {
			return true
		}
	}

	return false
}

func (c *anyCondition) Serialize() map[string]any {
	return map[string]any{"type": "any", "conditions": serializeAll(c.conditions)}
}

// notCondition negates its single sub-condition.
type notCondition struct {
	condition Condition
}

func NewNot(inner Condition) Condition {
	return &notCondition{condition: inner}
}

func (c *notCondition) Type() string { return "not" }

func (c *notCondition) Evaluate(tx *transaction.Transaction) bool {
	return !c.condition.Evaluate(tx)
}

func (c *notCondition) Serialize() map[string]any {
	return map[string]any{"type": "not", "condition": c.condition.Serialize()}
}

func serializeAll(conditions []Condition) []any {
	out := make([]any, len(conditions))
	for i, c := range conditions {
		out[i] = c.Serialize()
	}

	return out
}

func init() {
	register("all", func(doc map[string]any) (Condition, error) {
		sub, err := conditionsFrom(doc, "conditions")
		if err != nil {
			return nil, err
		}

		return &allCondition{conditions: sub}, nil
	})

	register("any", func(doc map[string]any) (Condition, error) {
		sub, err := conditionsFrom(doc, "conditions")
		if err != nil {
			return nil, err
		}

		return &anyCondition{conditions: sub}, nil
	})

	register("not", func(doc map[string]any) (Condition, error) {
		sub, err := conditionFrom(doc, "condition")
		if err != nil {
			return nil, err
		}

		return &notCondition{condition: sub}, nil
	})
}
