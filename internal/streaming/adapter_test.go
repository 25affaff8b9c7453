package streaming

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthien-control/core/internal/chatapi"
	"github.com/luthien-control/core/internal/streams"
)

func TestToResponseStream_PassesStructuredChunksThrough(t *testing.T) {
	chunk := &chatapi.Response{Object: "chat.completion.chunk"}
	source := streams.SliceStream([]*OpenAIChunkEvent{
		{IsChunk: true, Chunk: chunk},
		{IsDone: true},
	})

	out := ToResponseStream(source)

	require.True(t, out.Next())
	assert.Same(t, chunk, out.Current())
	assert.False(t, out.Next())
	assert.NoError(t, out.Err())
}

func TestToResponseStream_SynthesizesChunkFromRawText(t *testing.T) {
	source := streams.SliceStream([]*OpenAIChunkEvent{
		{IsChunk: true, RawText: "partial text"},
		{IsDone: true},
	})

	out := ToResponseStream(source)

	require.True(t, out.Next())
	resp := out.Current()
	require.Len(t, resp.Choices, 1)
	require.NotNil(t, resp.Choices[0].Delta)
	require.NotNil(t, resp.Choices[0].Delta.Content.Text)
	assert.Equal(t, "partial text", *resp.Choices[0].Delta.Content.Text)

	assert.False(t, out.Next())
}

func TestToResponseStream_StopsOnError(t *testing.T) {
	sourceErr := errors.New("boom")
	source := streams.SliceStream([]*OpenAIChunkEvent{
		{IsError: true, Err: sourceErr},
	})

	out := ToResponseStream(source)

	assert.False(t, out.Next())
	require.Error(t, out.Err())
	assert.ErrorIs(t, out.Err(), ErrUpstreamStream)
	assert.ErrorIs(t, out.Err(), sourceErr)
}
