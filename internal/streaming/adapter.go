package streaming

import (
	"errors"

	"github.com/luthien-control/core/internal/chatapi"
	"github.com/luthien-control/core/internal/streams"
)

// ErrUpstreamStream is wrapped by an errored OpenAIChunkEvent surfaced by
// ToResponseStream, carrying the upstream item's own error text.
var ErrUpstreamStream = errors.New("streaming: upstream stream error")

// ToResponseStream adapts a Stream of parsed OpenAIChunkEvents (C4's OpenAI
// SDK stream wrapper) into the Stream[*chatapi.Response] shape a
// transaction's OpenAIResponse.StreamingIterator carries: a structured
// chunk is passed through as-is; a raw-text event (the upstream item failed
// to parse cleanly, spec §4.4) is synthesized into a minimal chunk carrying
// that text as the first choice's delta content, so P6's three-way
// discriminator survives translation into the transaction's own chunk type;
// a terminal [DONE] ends the stream; an error event ends the stream with an
// error.
func ToResponseStream(source streams.Stream[*OpenAIChunkEvent]) streams.Stream[*chatapi.Response] {
	return &responseAdapter{source: source}
}

type responseAdapter struct {
	source  streams.Stream[*OpenAIChunkEvent]
	current *chatapi.Response
	err     error
	done    bool
}

func (a *responseAdapter) Next() bool {
	if a.done {
		return false
	}

	if !a.source.Next() {
		a.err = a.source.Err()
		a.done = true

		return false
	}

	event := a.source.Current()

	switch {
	case event.IsDone:
		a.done = true

		return false
	case event.IsError:
		a.err = errors.Join(ErrUpstreamStream, event.Err)
		a.done = true

		return false
	case event.Chunk != nil:
		a.current = event.Chunk

		return true
	default:
		text := event.RawText
		a.current = &chatapi.Response{
			Object: "chat.completion.chunk",
			Choices: []chatapi.Choice{{
				Index: 0,
				Delta: &chatapi.Message{Content: chatapi.MessageContent{Text: &text}},
			}},
		}

		return true
	}
}

func (a *responseAdapter) Current() *chatapi.Response { return a.current }

func (a *responseAdapter) Err() error { return a.err }

func (a *responseAdapter) Close() error { return a.source.Close() }
