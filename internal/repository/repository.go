// Package repository implements the credential & policy persistence
// interfaces (C9) the loader and client-auth policy depend on.
package repository

import (
	"context"
	"time"
)

// ClientAPIKey is a persisted client credential (spec §3).
type ClientAPIKey struct {
	ID        int64
	KeyValue  string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	Metadata  map[string]any
}

// PolicyConfig is a persisted, possibly-nested policy document (spec §3).
// Config may itself contain nested PolicyConfig-shaped maps wherever a
// policy composes children (CompoundPolicy.policies, ConditionalPolicy.then
// /else) — the loader (C6) interprets that nesting, not this package.
type PolicyConfig struct {
	ID          int64
	Name        string
	Type        string
	Config      map[string]any
	IsActive    bool
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LogEntry is one row of the transaction audit log (luthien_log). Data
// holds the logged payload (e.g. a redacted transaction snapshot), Datatype
// tags what kind of payload it is so readers can filter without decoding.
type LogEntry struct {
	ID            int64
	TransactionID string
	Datetime      time.Time
	Data          map[string]any
	Datatype      string
	Notes         map[string]any
}

// APIKeyRepository looks up client credentials by exact value. Inactive
// records are still returned — the calling policy decides what an inactive
// key means (spec §4.9).
type APIKeyRepository interface {
	FindAPIKey(ctx context.Context, keyValue string) (*ClientAPIKey, error)
}

// PolicyRepository is the named-policy store the loader reads at startup
// and the registry admin surface writes to.
type PolicyRepository interface {
	FindPolicy(ctx context.Context, name string) (*PolicyConfig, error)
	ListPolicies(ctx context.Context, activeOnly bool) ([]*PolicyConfig, error)
	CreatePolicy(ctx context.Context, cfg *PolicyConfig) (*PolicyConfig, error)
	UpdatePolicy(ctx context.Context, id int64, cfg *PolicyConfig) (*PolicyConfig, error)
}

// LogRepository writes audit rows. It is deliberately separate from
// Repository: persistence of transaction data is opt-in (the engine's
// non-goals exclude persisting transactions), so consumers type-assert for
// it rather than require it.
type LogRepository interface {
	SaveLog(ctx context.Context, entry *LogEntry) error
}

// Repository bundles both surfaces; this is what the DependencyContainer
// carries as its credential/policy lookup.
type Repository interface {
	APIKeyRepository
	PolicyRepository
}
