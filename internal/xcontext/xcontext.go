// Package xcontext holds the small set of context keys shared across the
// engine: trace id, operation name, request id, and transaction id.
package xcontext

import "context"

type contextKey int

const (
	traceIDKey contextKey = iota
	operationNameKey
	requestIDKey
	transactionIDKey
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func GetTraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	return v, ok
}

func WithOperationName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationNameKey, name)
}

func GetOperationName(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(operationNameKey).(string)
	return v, ok
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func GetRequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)
	return v, ok
}

// WithTransactionID stores the id of the Transaction currently being
// processed, so the logging hook can stamp every line without every
// call site threading it through explicitly.
func WithTransactionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, transactionIDKey, id)
}

func GetTransactionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(transactionIDKey).(string)
	return v, ok
}
