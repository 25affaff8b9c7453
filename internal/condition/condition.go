// Package condition implements the condition tree (C3): serializable
// boolean predicates over a Transaction, used to gate policies (most
// directly ConditionalPolicy, C7).
package condition

import (
	"fmt"

	"github.com/luthien-control/core/internal/resolver"
	"github.com/luthien-control/core/internal/transaction"
)

// Condition is a value-returning predicate over a transaction. Equality
// between two conditions is defined by serialized-form equality (spec §4.3),
// not by pointer identity or struct comparison — see Equal.
type Condition interface {
	Type() string
	Evaluate(tx *transaction.Transaction) bool
	Serialize() map[string]any
}

// Equal reports whether two conditions are equivalent by serialized form.
func Equal(a, b Condition) bool {
	if a == nil || b == nil {
		return a == b
	}

	return serializedEqual(a.Serialize(), b.Serialize())
}

func serializedEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}

	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}

		am, aIsMap := av.(map[string]any)
		bm, bIsMap := bv.(map[string]any)

		switch {
		case aIsMap && bIsMap:
			if !serializedEqual(am, bm) {
				return false
			}
		case aIsMap != bIsMap:
			return false
		default:
			if !valueEqual(av, bv) {
				return false
			}
		}
	}

	return true
}

// constructor builds a Condition from its decoded config map; nested
// condition/resolver sub-documents are resolved via FromSerialized /
// resolver.FromSerialized, recursively.
type constructor func(doc map[string]any) (Condition, error)

var registry = map[string]constructor{}

func register(tag string, ctor constructor) {
	registry[tag] = ctor
}

// FromSerialized dispatches on the "type" tag to the registered constructor.
// An unknown tag is a hard load error (spec §4.3).
func FromSerialized(doc map[string]any) (Condition, error) {
	tag, _ := doc["type"].(string)

	ctor, ok := registry[tag]
	if !ok {
		return nil, fmt.Errorf("condition: unknown condition type %q", tag)
	}

	return ctor(doc)
}

func resolverFrom(doc map[string]any, key string) (resolver.Resolver, error) {
	sub, ok := doc[key].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("condition: missing or malformed %q resolver", key)
	}

	return resolver.FromSerialized(sub)
}

func conditionFrom(doc map[string]any, key string) (Condition, error) {
	sub, ok := doc[key].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("condition: missing or malformed %q condition", key)
	}

	return FromSerialized(sub)
}

func conditionsFrom(doc map[string]any, key string) ([]Condition, error) {
	raw, ok := doc[key].([]any)
	if !ok {
		return nil, fmt.Errorf("condition: missing or malformed %q condition list", key)
	}

	out := make([]Condition, 0, len(raw))

	for _, item := range raw {
		sub, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("condition: malformed entry in %q", key)
		}

		c, err := FromSerialized(sub)
		if err != nil {
			return nil, err
		}

		out = append(out, c)
	}

	return out, nil
}
