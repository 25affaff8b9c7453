// Package resolver implements the value resolver & path accessor (C2):
// static literals and dotted-path extraction against a Transaction.
package resolver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"github.com/luthien-control/core/internal/transaction"
	"github.com/luthien-control/core/internal/xmap"
)

// Resolver produces a value from a transaction. The two variants spec §3
// names are Static (a constant) and TransactionPath (a dotted path resolved
// against the transaction's snapshot).
type Resolver interface {
	Resolve(tx *transaction.Transaction) any
	Serialize() map[string]any
}

// Static always returns the same literal value, regardless of transaction.
type Static struct {
	Value any
}

func NewStatic(value any) *Static { return &Static{Value: value} }

func (s *Static) Resolve(*transaction.Transaction) any { return s.Value }

func (s *Static) Serialize() map[string]any {
	return map[string]any{"type": "static", "value": s.Value}
}

// TransactionPath resolves a dotted path against the transaction's snapshot,
// following the access order in path.go. Per spec §3 a path needs at least
// two components; with fewer, Resolve always yields null rather than
// erroring (the engine never raises for a missing or malformed path).
type TransactionPath struct {
	Path string
}

func NewTransactionPath(path string) *TransactionPath {
	return &TransactionPath{Path: path}
}

func (p *TransactionPath) segments() []string {
	if p.Path == "" {
		return nil
	}

	return strings.Split(p.Path, ".")
}

// Valid reports whether the path satisfies the two-component minimum; the
// loader (C6) uses this to reject a malformed condition document at load
// time rather than let it silently resolve to null forever.
func (p *TransactionPath) Valid() bool {
	return len(p.segments()) >= 2
}

func (p *TransactionPath) Resolve(tx *transaction.Transaction) any {
	segs := p.segments()
	if len(segs) < 2 || tx == nil {
		return nil
	}

	snapshot := tx.Snapshot()

	if v := navigate(snapshot, segs); v != nil {
		return v
	}

	// Reflection missed (snapshot already flattened to plain JSON, e.g. a
	// transaction round-tripped through transaction_context_logging or
	// reloaded from storage) — fall back to a gjson lookup against the
	// marshaled snapshot before giving up and yielding null.
	return p.resolveViaJSON(snapshot)
}

func (p *TransactionPath) resolveViaJSON(snapshot map[string]any) any {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil
	}

	result := gjson.GetBytes(raw, p.Path)
	if !result.Exists() {
		return nil
	}

	return result.Value()
}

func (p *TransactionPath) Serialize() map[string]any {
	return map[string]any{"type": "transaction_path", "path": p.Path}
}

// FromSerialized dispatches on the "type" key, the same shape C3 conditions
// use for their left/right resolvers.
func FromSerialized(doc map[string]any) (Resolver, error) {
	tag, _ := doc["type"].(string)

	switch tag {
	case "static":
		return NewStatic(doc["value"]), nil
	case "transaction_path":
		path := lo.FromPtr(xmap.GetStringPtr(doc, "path"))

		r := NewTransactionPath(path)
		if !r.Valid() {
			return nil, fmt.Errorf("resolver: transaction_path %q needs at least two components", path)
		}

		return r, nil
	default:
		return nil, fmt.Errorf("resolver: unknown value resolver type %q", tag)
	}
}
