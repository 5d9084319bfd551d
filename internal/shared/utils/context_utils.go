package utils

import (
	"context"

	"codes-api/internal/shared/contextkeys"
)

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextkeys.RequestIDKey, requestID)
}

// WithClientIP adds the resolved client address to context
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextkeys.ClientIPKey, ip)
}

// WithOperation adds operation name to context
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, contextkeys.OperationKey, operation)
}
