package policy

import (
	"github.com/luthien-control/core/internal/chatapi"
	"github.com/luthien-control/core/internal/streams"
	"github.com/luthien-control/core/internal/transaction"
)

// ContentTransformer rewrites one chunk's delta content text. Per spec
// §4.5, "OpenAI-content transformers receive the delta.content text only" —
// everything else about the chunk (role, tool_calls, finish_reason, usage)
// passes through untouched.
type ContentTransformer func(content string) (string, error)

// wrapContentStream applies transform to the first choice's delta content
// of every chunk in source, leaving every other field (and non-content
// chunks) untouched. This is the default apply_streaming wrapper every
// StreamingControlPolicy-shaped built-in policy uses.
func wrapContentStream(source streams.Stream[*chatapi.Response], transform ContentTransformer) streams.Stream[*chatapi.Response] {
	return streams.MapStream(source, func(chunk *chatapi.Response) *chatapi.Response {
		if chunk == nil || len(chunk.Choices) == 0 {
			return chunk
		}

		choice := chunk.Choices[0]
		if choice.Delta == nil || choice.Delta.Content.Text == nil {
			return chunk
		}

		rewritten, err := transform(*choice.Delta.Content.Text)
		if err != nil {
			// Errors from a content transformer during streaming are not
			// representable as a chunk; leave the original text rather than
			// silently drop the chunk. Callers that need hard failure
			// should validate inputs before streaming begins.
			return chunk
		}

		choice.Delta.Content.Text = &rewritten

		return chunk
	})
}

// ApplyStreaming dispatches a StreamingControlPolicy onto a transaction's
// response: if the response streams, its iterator is wrapped with
// transform; otherwise every buffered choice's message content is run
// through transform directly. Built-in policies that rewrite content
// (IncrementIntegers) call this instead of re-implementing the
// is_streaming branch themselves.
func ApplyStreaming(tx *transaction.Transaction, transform ContentTransformer) error {
	resp := tx.OpenAIResponse()
	if resp == nil {
		return nil
	}

	if resp.IsStreaming() {
		tx.SetOpenAIResponse(&transaction.OpenAIResponse{
			StreamingIterator: wrapContentStream(resp.StreamingIterator, transform),
		})

		return nil
	}

	if resp.Payload == nil {
		return nil
	}

	for i := range resp.Payload.Choices {
		msg := resp.Payload.Choices[i].Message
		if msg == nil || msg.Content.Text == nil {
			continue
		}

		rewritten, err := transform(*msg.Content.Text)
		if err != nil {
			return err
		}

		msg.Content.Text = &rewritten
	}

	return nil
}
