package log

import "context"

// Hook post-processes a log call's fields before they are written, given the
// request context. Used by internal/tracing to stamp transaction_id and
// operation_name onto every line without call-site plumbing.
type Hook interface {
	Apply(ctx context.Context, msg string, fields ...Field) []Field
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(ctx context.Context, msg string, fields ...Field) []Field

func (f HookFunc) Apply(ctx context.Context, msg string, fields ...Field) []Field {
	return f(ctx, msg, fields...)
}
