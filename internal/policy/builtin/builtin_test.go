package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthien-control/core/internal/chatapi"
	"github.com/luthien-control/core/internal/condition"
	"github.com/luthien-control/core/internal/policy"
	"github.com/luthien-control/core/internal/repository"
	"github.com/luthien-control/core/internal/resolver"
	"github.com/luthien-control/core/internal/transaction"
)

func textPtr(s string) *string { return &s }

type fakeRepository struct {
	apiKeys map[string]*repository.ClientAPIKey
}

func (f *fakeRepository) FindAPIKey(_ context.Context, keyValue string) (*repository.ClientAPIKey, error) {
	return f.apiKeys[keyValue], nil
}

func (f *fakeRepository) FindPolicy(context.Context, string) (*repository.PolicyConfig, error) {
	return nil, nil
}

func (f *fakeRepository) ListPolicies(context.Context, bool) ([]*repository.PolicyConfig, error) {
	return nil, nil
}

func (f *fakeRepository) CreatePolicy(_ context.Context, cfg *repository.PolicyConfig) (*repository.PolicyConfig, error) {
	return cfg, nil
}

func (f *fakeRepository) UpdatePolicy(_ context.Context, _ int64, cfg *repository.PolicyConfig) (*repository.PolicyConfig, error) {
	return cfg, nil
}

func openAITx(model string) *transaction.Transaction {
	return transaction.NewFromOpenAIRequest(&transaction.OpenAIRequest{
		Payload: &chatapi.Request{
			Model:    model,
			Messages: []chatapi.Message{{Role: "user", Content: chatapi.MessageContent{Text: textPtr("hi")}}},
		},
	})
}

func TestClientApiKeyAuth_MissingHeader(t *testing.T) {
	p := NewClientApiKeyAuth("auth")
	tx := transaction.NewFromRawRequest(&transaction.RawRequest{Method: "POST", Path: "/x"})

	_, err := p.Apply(context.Background(), tx, &policy.Container{Repository: &fakeRepository{apiKeys: map[string]*repository.ClientAPIKey{}}})
	require.Error(t, err)

	cpErr, ok := err.(*policy.ControlPolicyError)
	require.True(t, ok)
	assert.Equal(t, 401, cpErr.StatusCode)
}

func TestClientApiKeyAuth_UnknownKey(t *testing.T) {
	p := NewClientApiKeyAuth("auth")
	tx := transaction.NewFromRawRequest(&transaction.RawRequest{
		Method:  "POST",
		Path:    "/x",
		Headers: map[string][]string{"Authorization": {"Bearer nope"}},
	})

	_, err := p.Apply(context.Background(), tx, &policy.Container{Repository: &fakeRepository{apiKeys: map[string]*repository.ClientAPIKey{}}})
	require.Error(t, err)
	assert.Equal(t, 401, err.(*policy.ControlPolicyError).StatusCode)
}

func TestClientApiKeyAuth_ValidActiveKey(t *testing.T) {
	p := NewClientApiKeyAuth("auth")
	tx := transaction.NewFromRawRequest(&transaction.RawRequest{
		Method:  "POST",
		Path:    "/x",
		Headers: map[string][]string{"Authorization": {"Bearer client-key"}},
	})

	repo := &fakeRepository{apiKeys: map[string]*repository.ClientAPIKey{
		"client-key": {KeyValue: "client-key", Name: "test", IsActive: true},
	}}

	result, err := p.Apply(context.Background(), tx, &policy.Container{Repository: repo})
	require.NoError(t, err)
	assert.Same(t, tx, result)

	v, ok := result.GetData("client_api_key")
	require.True(t, ok)
	assert.Equal(t, "test", v.(*repository.ClientAPIKey).Name)
}

func TestClientApiKeyAuth_InactiveKeyRejected(t *testing.T) {
	p := NewClientApiKeyAuth("auth")
	tx := transaction.NewFromRawRequest(&transaction.RawRequest{
		Method:  "POST",
		Path:    "/x",
		Headers: map[string][]string{"Authorization": {"Bearer client-key"}},
	})

	repo := &fakeRepository{apiKeys: map[string]*repository.ClientAPIKey{
		"client-key": {KeyValue: "client-key", Name: "test", IsActive: false},
	}}

	_, err := p.Apply(context.Background(), tx, &policy.Container{Repository: repo})
	require.Error(t, err)
}

func TestCompoundPolicy_AppliesInOrderAndShortCircuits(t *testing.T) {
	leakDetector, err := NewLeakedApiKeyDetection("", nil)
	require.NoError(t, err)

	p := NewCompoundPolicy("root", []policy.ControlPolicy{
		NewModelNameReplacement("", map[string]string{"fake": "gpt-4o"}),
		leakDetector,
	})

	tx := openAITx("fake")

	result, err := p.Apply(context.Background(), tx, &policy.Container{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", result.OpenAIRequest().Payload.Model)
}

func TestCompoundPolicy_ShortCircuitsOnError(t *testing.T) {
	leakDetector, err := NewLeakedApiKeyDetection("", nil)
	require.NoError(t, err)

	p := NewCompoundPolicy("root", []policy.ControlPolicy{
		leakDetector,
		NewModelNameReplacement("", map[string]string{"fake": "should-not-run"}),
	})

	tx := transaction.NewFromOpenAIRequest(&transaction.OpenAIRequest{
		Payload: &chatapi.Request{
			Model: "fake",
			Messages: []chatapi.Message{{
				Role:    "user",
				Content: chatapi.MessageContent{Text: textPtr("my key is sk-abcdefghijklmnopqrstuvwxyz1234567890abcdefghijklmn")},
			}},
		},
	})

	_, err = p.Apply(context.Background(), tx, &policy.Container{})
	require.Error(t, err)
	assert.Equal(t, 403, err.(*policy.ControlPolicyError).StatusCode)
	assert.Equal(t, "fake", tx.OpenAIRequest().Payload.Model)
}

func TestConditionalPolicy_ChoosesBranchByCondition(t *testing.T) {
	cond := condition.NewEquals(
		resolver.NewTransactionPath("request.payload.model"),
		resolver.NewStatic("fake"),
	)

	p := NewConditionalPolicy("branch", cond,
		NewModelNameReplacement("", map[string]string{"fake": "gpt-4o"}),
		NewNoop(""),
	)

	fakeResult, err := p.Apply(context.Background(), openAITx("fake"), &policy.Container{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", fakeResult.OpenAIRequest().Payload.Model)

	otherResult, err := p.Apply(context.Background(), openAITx("gpt-3.5-turbo"), &policy.Container{})
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", otherResult.OpenAIRequest().Payload.Model)
}

func TestIncrementIntegers_NonStreamingRewritesDigits(t *testing.T) {
	tx := openAITx("gpt-4o")
	tx.SetOpenAIResponse(&transaction.OpenAIResponse{
		Payload: &chatapi.Response{
			Choices: []chatapi.Choice{
				{Message: &chatapi.Message{Content: chatapi.MessageContent{Text: textPtr("I have 5 apples and 3 oranges")}}},
			},
		},
	})

	p := NewIncrementIntegers("")

	result, err := p.Apply(context.Background(), tx, &policy.Container{})
	require.NoError(t, err)
	assert.Equal(t, "I have 6 apples and 4 oranges", *result.OpenAIResponse().Payload.Choices[0].Message.Content.Text)
}

func TestIncrementIntegers_NoRequestRaises(t *testing.T) {
	p := NewIncrementIntegers("")
	tx := &transaction.Transaction{}

	_, err := p.Apply(context.Background(), tx, &policy.Container{})
	require.Error(t, err)
}

func TestTransactionContextLogging_Preserves(t *testing.T) {
	p := NewTransactionContextLogging("", "")
	tx := openAITx("gpt-4o")

	result, err := p.Apply(context.Background(), tx, &policy.Container{})
	require.NoError(t, err)
	assert.Same(t, tx, result)
	assert.Equal(t, "gpt-4o", result.OpenAIRequest().Payload.Model)
}

func TestRedactSecret(t *testing.T) {
	assert.Equal(t, "", redactSecret(""))
	assert.Equal(t, "s***", redactSecret("s"))
	assert.Equal(t, "sk-1***", redactSecret("sk-1234567890"))
}

func TestBackendCall_OverlaysRequestArgsAndModel(t *testing.T) {
	p := NewBackendCall("", BackendCallSpec{
		Model:       "gpt-4o-mini",
		APIEndpoint: "https://upstream.example",
		RequestArgs: map[string]any{"temperature": 0.1},
	})

	overlaid, err := p.overlay(&chatapi.Request{Model: "gpt-4o", Messages: []chatapi.Message{{Role: "user"}}})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", overlaid.Model)
	require.NotNil(t, overlaid.Temperature)
	assert.InDelta(t, 0.1, *overlaid.Temperature, 0.0001)
}
