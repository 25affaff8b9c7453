package streaming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luthien-control/core/internal/streams"
)

func TestParseOpenAIChunk_Done(t *testing.T) {
	e := ParseOpenAIChunk([]byte("[DONE]"))
	assert.True(t, e.IsDone)
	assert.False(t, e.IsChunk)
	assert.False(t, e.IsError)
}

func TestParseOpenAIChunk_StructuredChunk(t *testing.T) {
	e := ParseOpenAIChunk([]byte(`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"hi"}}]}`))
	require.True(t, e.IsChunk)
	require.NotNil(t, e.Chunk)
	require.Len(t, e.Chunk.Choices, 1)
	assert.Equal(t, "hi", e.Chunk.Choices[0].Delta.Content.FlatText())
}

func TestParseOpenAIChunk_UnparsableSurfacesRawText(t *testing.T) {
	e := ParseOpenAIChunk([]byte("not json at all"))
	assert.True(t, e.IsChunk)
	assert.Nil(t, e.Chunk)
	assert.Equal(t, "not json at all", e.RawText)
}

func TestP6_ExactlyOneFlagTrue(t *testing.T) {
	cases := [][]byte{
		[]byte("[DONE]"),
		[]byte(`{"id":"1","object":"chat.completion.chunk","choices":[]}`),
		[]byte("garbage"),
		[]byte(""),
	}

	for _, c := range cases {
		e := ParseOpenAIChunk(c)
		count := 0
		if e.IsChunk {
			count++
		}

		if e.IsDone {
			count++
		}

		if e.IsError {
			count++
		}

		assert.Equal(t, 1, count, "input %q", c)
	}
}

func TestOpenAIStreamWrapper(t *testing.T) {
	source := streams.SliceStream([][]byte{
		[]byte(`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"Hel"}}]}`),
		[]byte(`{"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"lo"}}]}`),
		[]byte("[DONE]"),
	})

	wrapper := OpenAIStreamWrapper(source)

	var texts []string

	for wrapper.Next() {
		e := wrapper.Current()
		if e.IsChunk && e.Chunk != nil {
			texts = append(texts, e.Chunk.Choices[0].Delta.Content.FlatText())
		}
	}

	require.NoError(t, wrapper.Err())
	assert.Equal(t, []string{"Hel", "lo"}, texts)
}

func TestRawByteStreamWrapper(t *testing.T) {
	r := strings.NewReader("abcdefghij")
	s := RawByteStreamWrapper(r, 4)

	var out []byte
	for s.Next() {
		out = append(out, s.Current()...)
	}

	require.NoError(t, s.Err())
	assert.Equal(t, "abcdefghij", string(out))
}

func TestChunkedTextStream(t *testing.T) {
	s := ChunkedTextStream("hello world", 4)

	var out []string
	for s.Next() {
		out = append(out, s.Current())
	}

	require.NoError(t, s.Err())
	assert.Equal(t, []string{"hell", "o wo", "rld"}, out)
}

func TestBuffer_PeekThenReplay(t *testing.T) {
	source := streams.SliceStream([]int{1, 2, 3, 4, 5})
	buf := NewBuffer[int](source)

	peeked := buf.Peek(2)
	assert.Equal(t, []int{1, 2}, peeked)

	var all []int
	for buf.Next() {
		all = append(all, buf.Current())
	}

	require.NoError(t, buf.Err())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, all)
}

func TestBuffer_PeekBeyondSource(t *testing.T) {
	buf := NewBuffer[int](streams.SliceStream([]int{1, 2}))
	peeked := buf.Peek(5)
	assert.Equal(t, []int{1, 2}, peeked)
}
