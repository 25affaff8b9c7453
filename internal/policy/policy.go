// Package policy implements the policy contract and base policies (C5):
// the ControlPolicy interface every built-in policy (C7) satisfies, its
// streaming variant, and the dependency container policies are invoked
// with.
package policy

import (
	"context"
	"net/http"

	"github.com/luthien-control/core/internal/repository"
	"github.com/luthien-control/core/internal/settings"
	"github.com/luthien-control/core/internal/transaction"
)

// Container bundles the per-request dependencies a policy may declare by
// name when the loader (C6) resolves its constructor arguments: settings,
// an HTTP client, and the credential/policy repository. The spec's "db
// session" dependency is folded into Repository — a Go repository call
// acquires its own connection from the pool, so there is no separate
// session handle to thread through.
type Container struct {
	Settings   *settings.Settings
	HTTPClient *http.Client
	Repository repository.Repository
}

// ControlPolicy transforms a transaction. Apply may mutate the transaction
// in place and must return the same pointer (identity-preserving, P3/P9).
type ControlPolicy interface {
	Name() string
	Apply(ctx context.Context, tx *transaction.Transaction, container *Container) (*transaction.Transaction, error)
	Serialize() map[string]any
}
