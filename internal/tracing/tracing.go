// Package tracing assigns and propagates the identifiers that tie a request's
// log lines together: a trace id (per inbound HTTP call) and, layered on top
// by the orchestrator, the transaction id of the Transaction being processed.
package tracing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/luthien-control/core/internal/xcontext"
)

type Config struct {
	// TraceHeader is the inbound header carrying a caller-supplied trace id.
	// Defaults to "X-Trace-Id" when empty.
	TraceHeader string `conf:"trace_header" yaml:"trace_header" json:"trace_header"`
}

// GenerateTraceID returns a new trace id, formatted "at-{uuid}".
func GenerateTraceID() string {
	return fmt.Sprintf("at-%s", uuid.New().String())
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return xcontext.WithTraceID(ctx, traceID)
}

func GetTraceID(ctx context.Context) (string, bool) {
	return xcontext.GetTraceID(ctx)
}

func WithOperationName(ctx context.Context, name string) context.Context {
	return xcontext.WithOperationName(ctx, name)
}

func GetOperationName(ctx context.Context) (string, bool) {
	return xcontext.GetOperationName(ctx)
}

func GetRequestID(ctx context.Context) (string, bool) {
	return xcontext.GetRequestID(ctx)
}

func WithTransactionID(ctx context.Context, id string) context.Context {
	return xcontext.WithTransactionID(ctx, id)
}

func GetTransactionID(ctx context.Context) (string, bool) {
	return xcontext.GetTransactionID(ctx)
}
