package transaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthien-control/core/internal/chatapi"
	"github.com/luthien-control/core/internal/streams"
)

func TestNewFromOpenAIRequest_SetsRequestType(t *testing.T) {
	tx := NewFromOpenAIRequest(&OpenAIRequest{Payload: &chatapi.Request{Model: "gpt-4o"}})
	assert.Equal(t, RequestTypeOpenAIChat, tx.RequestType())
	assert.NotEmpty(t, tx.ID())
	assert.False(t, tx.IsStreaming())
	assert.False(t, tx.HasResponse())
}

func TestNewFromRawRequest_SetsRequestType(t *testing.T) {
	tx := NewFromRawRequest(&RawRequest{Method: "POST", Path: "/v1/chat/completions"})
	assert.Equal(t, RequestTypeRawPassthrough, tx.RequestType())
}

func TestIsStreaming_TrueOnlyWithIterator(t *testing.T) {
	tx := NewFromOpenAIRequest(&OpenAIRequest{Payload: &chatapi.Request{}})

	tx.SetOpenAIResponse(&OpenAIResponse{Payload: &chatapi.Response{ID: "1"}})
	assert.False(t, tx.IsStreaming())

	tx2 := NewFromOpenAIRequest(&OpenAIRequest{Payload: &chatapi.Request{}})
	tx2.SetOpenAIResponse(&OpenAIResponse{StreamingIterator: streams.SliceStream([]*chatapi.Response{})})
	assert.True(t, tx2.IsStreaming())
}

func TestSetOpenAIResponse_PanicsOnRawRequestTransaction(t *testing.T) {
	tx := NewFromRawRequest(&RawRequest{})
	assert.Panics(t, func() {
		tx.SetOpenAIResponse(&OpenAIResponse{Payload: &chatapi.Response{}})
	})
}

func TestSetData_NotifiesObservers(t *testing.T) {
	tx := NewFromOpenAIRequest(&OpenAIRequest{Payload: &chatapi.Request{}})

	calls := 0
	tx.OnChanged(func() { calls++ })

	tx.SetData("foo", "bar")
	require.Equal(t, 1, calls)

	v, ok := tx.GetData("foo")
	assert.True(t, ok)
	assert.Equal(t, "bar", v)
}

func TestSnapshot_OpenAIRequest(t *testing.T) {
	tx := NewFromOpenAIRequest(&OpenAIRequest{
		Payload:     &chatapi.Request{Model: "gpt-4o"},
		APIEndpoint: "https://upstream.example",
		APIKey:      "sk-secret",
	})

	snap := tx.Snapshot()
	assert.Equal(t, "openai_chat", snap["request_type"])

	req, ok := snap["request"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://upstream.example", req["api_endpoint"])
}
