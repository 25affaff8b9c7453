// Package sse adapts the upstream Server-Sent Events wire format to and
// from the engine's internal streams.Stream[T] abstraction (C4), and frames
// outgoing SSE for the client-facing wire (spec §6). Decoding is grounded on
// the teacher's llm/httpclient.defaultSSEDecoder: the same go-sse Stream,
// wrapped to satisfy streams.Stream[[]byte] instead of a bespoke event type.
package sse

import (
	"bytes"
	"context"
	"errors"
	"io"

	gosse "github.com/tmaxmax/go-sse"

	"github.com/luthien-control/core/internal/streams"
)

// Decode wraps rc's SSE-framed body into a Stream of raw event data
// payloads, one []byte per "data:" event — the substrate the OpenAI stream
// wrapper (C4) and the raw-passthrough streaming path both build on.
func Decode(ctx context.Context, rc io.ReadCloser) streams.Stream[[]byte] {
	return &decoder{
		ctx: ctx,
		stream: gosse.NewStreamWithConfig(rc, &gosse.StreamConfig{
			MaxEventSize: 32 * 1024 * 1024,
		}),
	}
}

type decoder struct {
	ctx     context.Context
	stream  *gosse.Stream
	current []byte
	err     error
	closed  bool
}

func (d *decoder) Next() bool {
	if d.err != nil || d.closed {
		return false
	}

	select {
	case <-d.ctx.Done():
		d.err = d.ctx.Err()
		_ = d.Close()

		return false
	default:
	}

	event, err := d.stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			_ = d.Close()
			return false
		}

		d.err = err
		_ = d.Close()

		return false
	}

	d.current = []byte(event.Data)

	return true
}

func (d *decoder) Current() []byte { return d.current }

func (d *decoder) Err() error { return d.err }

func (d *decoder) Close() error {
	if d.closed {
		return nil
	}

	d.closed = true

	return d.stream.Close()
}

// Frame renders one outgoing SSE frame: an optional "event: <name>" line
// followed by a "data: <payload>" line and the blank-line terminator (spec
// §6 wire format). payload is written verbatim — callers pass already
// JSON-encoded bytes.
func Frame(eventName string, payload []byte) []byte {
	var buf bytes.Buffer

	if eventName != "" {
		buf.WriteString("event: ")
		buf.WriteString(eventName)
		buf.WriteByte('\n')
	}

	buf.WriteString("data: ")
	buf.Write(payload)
	buf.WriteString("\n\n")

	return buf.Bytes()
}

// ErrorFrame renders the spec §6/§7 mid-stream error frame:
// "event: error\ndata: {\"error\": <kind>}\n\n".
func ErrorFrame(kind string) []byte {
	return Frame("error", []byte(`{"error":"`+escapeJSONString(kind)+`"}`))
}

func escapeJSONString(s string) string {
	var buf bytes.Buffer

	for _, r := range s {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\n':
			buf.WriteString(`\n`)
		default:
			buf.WriteRune(r)
		}
	}

	return buf.String()
}
