package sse

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_YieldsEachDataPayload(t *testing.T) {
	body := "data: {\"id\":1}\n\ndata: {\"id\":2}\n\n"
	rc := io.NopCloser(strings.NewReader(body))

	stream := Decode(context.Background(), rc)
	defer stream.Close()

	var got []string
	for stream.Next() {
		got = append(got, string(stream.Current()))
	}

	require.NoError(t, stream.Err())
	assert.Equal(t, []string{`{"id":1}`, `{"id":2}`}, got)
}

func TestFrame_WithEventName(t *testing.T) {
	frame := Frame("error", []byte(`{"error":"x"}`))
	assert.Equal(t, "event: error\ndata: {\"error\":\"x\"}\n\n", string(frame))
}

func TestFrame_WithoutEventName(t *testing.T) {
	frame := Frame("", []byte(`{"id":1}`))
	assert.Equal(t, "data: {\"id\":1}\n\n", string(frame))
}

func TestErrorFrame_EscapesKind(t *testing.T) {
	frame := ErrorFrame(`upstream "broke"`)
	assert.Equal(t, "event: error\ndata: {\"error\":\"upstream \\\"broke\\\"\"}\n\n", string(frame))
}
