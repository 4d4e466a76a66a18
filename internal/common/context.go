package common

import (
	"context"
)

type contextKey string

// ContextKeyRequestID carries the trace ID of the submission that started a
// run, when there is one.
const ContextKeyRequestID contextKey = "request_id"

// WithRequestID adds a request trace ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request trace ID from context, empty
// when none was set.
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}
