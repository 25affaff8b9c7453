package streaming

import "github.com/luthien-control/core/internal/streams"

// Buffer wraps a Stream[T] and adds Peek(n), letting a policy inspect the
// first chunks of a response before deciding whether to transform, block, or
// pass it through untouched. Once iteration begins (via Next/Current),
// buffered items are replayed first, then the source resumes.
type Buffer[T any] struct {
	source   streams.Stream[T]
	buffered []T
	replayAt int
	replaying bool
	current  T
}

func NewBuffer[T any](source streams.Stream[T]) *Buffer[T] {
	return &Buffer[T]{source: source}
}

// Peek fills the buffer up to n items (fewer if the source ends first) and
// returns them, without consuming the logical iteration position: a
// subsequent Next/Current sequence still starts from the first buffered
// item.
func (b *Buffer[T]) Peek(n int) []T {
	for len(b.buffered) < n {
		if !b.source.Next() {
			break
		}

		b.buffered = append(b.buffered, b.source.Current())
	}

	if n > len(b.buffered) {
		n = len(b.buffered)
	}

	return b.buffered[:n]
}

func (b *Buffer[T]) Next() bool {
	if b.replayAt < len(b.buffered) {
		b.current = b.buffered[b.replayAt]
		b.replayAt++

		return true
	}

	if !b.source.Next() {
		return false
	}

	b.current = b.source.Current()

	return true
}

func (b *Buffer[T]) Current() T { return b.current }

func (b *Buffer[T]) Err() error { return b.source.Err() }

func (b *Buffer[T]) Close() error { return b.source.Close() }
