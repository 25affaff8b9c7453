package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthien-control/core/internal/policy"
	"github.com/luthien-control/core/internal/transaction"
)

// Every built-in that needs a request raises NoRequestError against a
// transaction that has none; the two read-only exceptions pass the
// transaction through untouched.
func TestBuiltins_NoRequestRaises(t *testing.T) {
	leak, err := NewLeakedApiKeyDetection("", nil)
	require.NoError(t, err)

	fromEnv, err := NewAddApiKeyHeaderFromEnv("", "UPSTREAM_API_KEY")
	require.NoError(t, err)

	policies := []policy.ControlPolicy{
		NewAddApiKeyHeader(""),
		fromEnv,
		NewSetBackend("", "https://upstream.example"),
		NewModelNameReplacement("", nil),
		leak,
		NewClientApiKeyAuth(""),
		NewSendBackendRequest(""),
		NewBackendCall("", BackendCallSpec{}),
		NewIncrementIntegers(""),
	}

	for _, p := range policies {
		t.Run(p.Name(), func(t *testing.T) {
			tx := &transaction.Transaction{}

			_, err := p.Apply(context.Background(), tx, &policy.Container{})
			require.Error(t, err)

			cpErr, ok := err.(*policy.ControlPolicyError)
			require.True(t, ok)
			assert.Equal(t, "no request in transaction", cpErr.Detail)
		})
	}
}

func TestBuiltins_NoRequestExceptions(t *testing.T) {
	for _, p := range []policy.ControlPolicy{
		NewNoop(""),
		NewTransactionContextLogging("", ""),
	} {
		t.Run(p.Name(), func(t *testing.T) {
			tx := &transaction.Transaction{}

			result, err := p.Apply(context.Background(), tx, &policy.Container{})
			require.NoError(t, err)
			assert.Same(t, tx, result)
		})
	}
}
