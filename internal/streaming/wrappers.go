package streaming

import (
	"io"

	"github.com/luthien-control/core/internal/streams"
)

// OpenAIStreamWrapper adapts an upstream item source (one []byte payload per
// item, already split out of the wire framing by the SSE decoder or
// equivalent) into a stream of parsed OpenAIChunkEvents.
func OpenAIStreamWrapper(source streams.Stream[[]byte]) streams.Stream[*OpenAIChunkEvent] {
	return streams.MapStream(source, func(data []byte) *OpenAIChunkEvent {
		event := ParseOpenAIChunk(data)
		return &event
	})
}

// RawByteStreamWrapper pulls byte slices from an underlying io.Reader. When
// the source already exposes a native chunk iterator (e.g. the upstream
// response body is itself SSE-framed), prefer wrapping that stream directly
// instead of this fixed-size fallback reader.
func RawByteStreamWrapper(r io.Reader, chunkSize int) streams.Stream[[]byte] {
	if chunkSize <= 0 {
		chunkSize = 4096
	}

	return &rawByteStream{r: r, chunkSize: chunkSize}
}

type rawByteStream struct {
	r         io.Reader
	chunkSize int
	current   []byte
	err       error
	done      bool
}

func (s *rawByteStream) Next() bool {
	if s.done {
		return false
	}

	buf := make([]byte, s.chunkSize)

	n, err := s.r.Read(buf)
	if n > 0 {
		s.current = buf[:n]

		if err != nil && err != io.EOF {
			// Deliver the final partial read, then surface the error on the
			// following call so no bytes are dropped.
			s.err = err
			s.done = false

			return true
		}

		if err == io.EOF {
			s.done = true
		}

		return true
	}

	if err != nil && err != io.EOF {
		s.err = err
	}

	s.done = true

	return false
}

func (s *rawByteStream) Current() []byte { return s.current }

func (s *rawByteStream) Err() error { return s.err }

func (s *rawByteStream) Close() error {
	if closer, ok := s.r.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

// ChunkedTextStream splits text into fixed-size pieces, for synthesizing a
// streaming response out of an already-materialized string (e.g. a policy
// that rewrites a buffered response into fake streaming chunks).
func ChunkedTextStream(text string, chunkSize int) streams.Stream[string] {
	if chunkSize <= 0 {
		chunkSize = 16
	}

	var pieces []string

	runes := []rune(text)
	for i := 0; i < len(runes); i += chunkSize {
		end := min(i+chunkSize, len(runes))
		pieces = append(pieces, string(runes[i:end]))
	}

	return streams.SliceStream(pieces)
}
