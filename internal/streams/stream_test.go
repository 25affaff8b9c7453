package streams

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain[T any](s Stream[T]) ([]T, error) {
	var out []T
	for s.Next() {
		out = append(out, s.Current())
	}

	return out, s.Err()
}

func TestSliceStream(t *testing.T) {
	s := SliceStream([]int{1, 2, 3})
	got, err := drain(s)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
	require.NoError(t, s.Close())
}

func TestAppendStream_AppendsAfterSource(t *testing.T) {
	base := SliceStream([]int{1, 2, 3})
	appended := AppendStream[int](base, 4, 5)

	got, err := drain(appended)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
	require.NoError(t, appended.Close())
}

func TestAppendStream_EmptyBase(t *testing.T) {
	appended := AppendStream[int](SliceStream([]int{}), 1, 2)
	got, err := drain(appended)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
}

func TestAppendStream_NoAppends(t *testing.T) {
	appended := AppendStream[int](SliceStream([]int{1, 2}))
	got, err := drain(appended)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)
}

type errorStream[T any] struct {
	items []T
	index int
	err   error
}

func (s *errorStream[T]) Next() bool {
	if s.index < len(s.items) {
		s.index++
		return true
	}

	return false
}

func (s *errorStream[T]) Current() T {
	if s.index > 0 && s.index <= len(s.items) {
		return s.items[s.index-1]
	}

	var zero T

	return zero
}

func (s *errorStream[T]) Err() error {
	if s.index >= len(s.items) {
		return s.err
	}

	return nil
}

func (s *errorStream[T]) Close() error { return nil }

func TestAppendStream_ErrorInSource(t *testing.T) {
	testErr := errors.New("test error")
	base := &errorStream[int]{items: []int{1, 2}, err: testErr}
	appended := AppendStream[int](base, 3, 4)

	got, err := drain(appended)
	assert.Equal(t, []int{1, 2}, got)
	assert.ErrorIs(t, err, testErr)
}

func TestMapStream(t *testing.T) {
	s := MapStream(SliceStream([]int{1, 2, 3}), func(i int) string {
		if i == 2 {
			return "two"
		}

		return "x"
	})

	got, err := drain(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "two", "x"}, got)
}

func TestAll(t *testing.T) {
	got, err := All[int](SliceStream([]int{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}
