package context

import (
	"context"
	"log/slog"
)

type contextKey string

// CorrelationIDKey is the context key for correlation IDs. For background work the
// correlation id is the task id, so a file outcome can be traced back to its task.
const CorrelationIDKey contextKey = "correlation_id"

// WithCorrelationID adds a correlation ID to the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

// GetCorrelationID returns the correlation ID, or an empty string.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// Logger returns log annotated with the correlation ID carried by ctx, if any.
func Logger(ctx context.Context, log *slog.Logger) *slog.Logger {
	if id := GetCorrelationID(ctx); id != "" {
		return log.With("correlation_id", id)
	}
	return log
}
