package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthien-control/core/internal/policy"
	"github.com/luthien-control/core/internal/transaction"
)

func TestNoop_IdentityByPointer(t *testing.T) {
	p := NewNoop("")
	tx := openAITx("gpt-4o")

	result, err := p.Apply(context.Background(), tx, &policy.Container{})
	require.NoError(t, err)
	assert.Same(t, tx, result)
}

func TestModelNameReplacement_EmptyMapIsIdentity(t *testing.T) {
	p := NewModelNameReplacement("", map[string]string{})
	tx := openAITx("gpt-3.5-turbo")

	result, err := p.Apply(context.Background(), tx, &policy.Container{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", result.OpenAIRequest().Payload.Model)
}

// The configured URL lands on the request verbatim — never joined with the
// request path.
func TestSetBackend_SetsURLExactly(t *testing.T) {
	p := NewSetBackend("", "https://fallback.example")

	tx := openAITx("gpt-4o")
	tx.OpenAIRequest().APIEndpoint = "https://api.openai.com/v1/chat/completions"

	result, err := p.Apply(context.Background(), tx, &policy.Container{})
	require.NoError(t, err)
	assert.Equal(t, "https://fallback.example", result.OpenAIRequest().APIEndpoint)

	raw := transaction.NewFromRawRequest(&transaction.RawRequest{Method: "POST", Path: "/v1/chat/completions"})

	result, err = p.Apply(context.Background(), raw, &policy.Container{})
	require.NoError(t, err)
	assert.Equal(t, "https://fallback.example", result.RawRequest().BackendURL)
	assert.Equal(t, "/v1/chat/completions", result.RawRequest().Path)
}
