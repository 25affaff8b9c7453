package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthien-control/core/internal/chatapi"
	"github.com/luthien-control/core/internal/transaction"
)

func newTx(model string) *transaction.Transaction {
	return transaction.NewFromOpenAIRequest(&transaction.OpenAIRequest{
		Payload:     &chatapi.Request{Model: model},
		APIEndpoint: "https://upstream.example",
	})
}

func TestStatic_Resolve(t *testing.T) {
	r := NewStatic("gpt-4o")
	assert.Equal(t, "gpt-4o", r.Resolve(nil))
}

func TestTransactionPath_Resolve(t *testing.T) {
	tx := newTx("gpt-4o")
	r := NewTransactionPath("request.payload.model")
	assert.Equal(t, "gpt-4o", r.Resolve(tx))
}

func TestTransactionPath_MissingYieldsNull(t *testing.T) {
	tx := newTx("gpt-4o")
	r := NewTransactionPath("request.payload.nonexistent")
	assert.Nil(t, r.Resolve(tx))
}

func TestTransactionPath_SingleSegmentIsInvalid(t *testing.T) {
	r := NewTransactionPath("request")
	assert.False(t, r.Valid())
	assert.Nil(t, r.Resolve(newTx("x")))
}

func TestTransactionPath_TopLevelField(t *testing.T) {
	tx := newTx("gpt-4o")
	r := NewTransactionPath("request.api_endpoint")
	assert.Equal(t, "https://upstream.example", r.Resolve(tx))
}

func TestFromSerialized_RoundTrip(t *testing.T) {
	for _, doc := range []map[string]any{
		{"type": "static", "value": float64(42)},
		{"type": "transaction_path", "path": "request.payload.model"},
	} {
		r, err := FromSerialized(doc)
		require.NoError(t, err)
		assert.Equal(t, doc, r.Serialize())
	}
}

func TestFromSerialized_UnknownType(t *testing.T) {
	_, err := FromSerialized(map[string]any{"type": "bogus"})
	assert.Error(t, err)
}

func TestFromSerialized_ShortPathRejected(t *testing.T) {
	_, err := FromSerialized(map[string]any{"type": "transaction_path", "path": "request"})
	assert.Error(t, err)
}
