package tracing

import (
	"context"

	"github.com/luthien-control/core/internal/log"
)

// SetupLogger wires TraceFieldsHooks into logger so every line is stamped
// with whatever identifiers the calling context carries.
func SetupLogger(logger *log.Logger) {
	logger.AddHook(log.HookFunc(TraceFieldsHooks))
}

// TraceFieldsHooks adds trace_id, request_id, operation_name, and
// transaction_id to log entries when present in the context.
func TraceFieldsHooks(ctx context.Context, msg string, fields ...log.Field) []log.Field {
	if ctx == nil {
		return fields
	}

	if traceID, ok := GetTraceID(ctx); ok {
		fields = append(fields, log.String("trace_id", traceID))
	}

	if requestID, ok := GetRequestID(ctx); ok {
		fields = append(fields, log.String("request_id", requestID))
	}

	if operationName, ok := GetOperationName(ctx); ok {
		fields = append(fields, log.String("operation_name", operationName))
	}

	if transactionID, ok := GetTransactionID(ctx); ok {
		fields = append(fields, log.String("transaction_id", transactionID))
	}

	return fields
}
