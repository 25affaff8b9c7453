// Package streaming implements the three concrete streaming-chunk sources
// spec §4.4 describes (OpenAI SDK stream wrapper, raw HTTP stream wrapper,
// chunked text), all built on the shared streams.Stream[T] iterator, plus
// the streaming buffer that lets a policy peek ahead before committing to
// passthrough.
package streaming

import (
	"bytes"
	"encoding/json"

	"github.com/kaptinlin/jsonrepair"

	"github.com/luthien-control/core/internal/chatapi"
)

// OpenAIChunkEvent is one item from the OpenAI SDK stream wrapper. Exactly
// one of IsChunk, IsDone, IsError is true (P6).
type OpenAIChunkEvent struct {
	IsChunk bool
	IsDone  bool
	IsError bool

	// Chunk is set when IsChunk is true and the item decoded cleanly into the
	// structured chat-completions chunk shape.
	Chunk *chatapi.Response

	// RawText is set when IsChunk is true but the item could not be decoded
	// as structured JSON (spec §4.4: "surface the raw text as a non-chunk
	// event" — realized here as a chunk event carrying text instead of a
	// parsed Chunk, so P6's three-way split still holds for every event this
	// wrapper yields).
	RawText string

	Err error
}

// ParseOpenAIChunk classifies one upstream SSE data payload into an
// OpenAIChunkEvent. data is the bytes after "data: " with no trailing
// newline.
func ParseOpenAIChunk(data []byte) OpenAIChunkEvent {
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) == 0 {
		return OpenAIChunkEvent{IsChunk: true, RawText: ""}
	}

	if bytes.Equal(trimmed, []byte("[DONE]")) {
		return OpenAIChunkEvent{IsDone: true}
	}

	var chunk chatapi.Response
	if err := json.Unmarshal(trimmed, &chunk); err == nil {
		return OpenAIChunkEvent{IsChunk: true, Chunk: &chunk}
	}

	repaired, err := jsonrepair.JSONRepair(string(trimmed))
	if err == nil {
		var repairedChunk chatapi.Response
		if err := json.Unmarshal([]byte(repaired), &repairedChunk); err == nil {
			return OpenAIChunkEvent{IsChunk: true, Chunk: &repairedChunk}
		}
	}

	// Could not coerce into a structured chunk at all; surface as raw text
	// rather than silently dropping the payload.
	return OpenAIChunkEvent{IsChunk: true, RawText: string(trimmed)}
}
