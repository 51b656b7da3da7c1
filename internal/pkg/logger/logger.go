package logger

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// AddFields adds fields to the logger in context and returns new context
func AddFields(ctx context.Context, fields ...zap.Field) context.Context {
	return ctxzap.ToContext(ctx, ctxzap.Extract(ctx).With(fields...))
}

// WithAction adds "action" field to context logger to describe the flow
func WithAction(ctx context.Context, action string) context.Context {
	return AddFields(ctx, zap.String("action", action))
}

// WithSession tags the context logger with the interview session being driven
func WithSession(ctx context.Context, sessionID string) context.Context {
	return AddFields(ctx, zap.String("session_id", sessionID))
}

// Has reports whether ctx carries a logger. Contexts built outside an HTTP
// request (timer callbacks, shutdown) do not.
func Has(ctx context.Context) bool {
	return ctxzap.Extract(ctx) != ctxzap.Extract(context.Background())
}

// Inherit returns ctx with the logger carried by from.
func Inherit(ctx, from context.Context) context.Context {
	return ctxzap.ToContext(ctx, ctxzap.Extract(from))
}
