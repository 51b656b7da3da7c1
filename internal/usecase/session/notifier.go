package session

import (
	"context"

	"github.com/futig/interview-orchestrator/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, entity.Notification) {}

// LogNotifier writes every notification to the context logger.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n entity.Notification) {
	fields := []zap.Field{
		zap.String("event", string(n.Event)),
		zap.String("status", string(n.Status)),
		zap.String("message", n.Message),
	}

	if n.Event != entity.CallbackEventTypeError {
		ctxzap.Debug(ctx, "session notification", fields...)
		return
	}

	fields = append(fields, zap.String("code", n.Code), zap.Bool("recoverable", n.Recoverable))
	if n.Recoverable {
		ctxzap.Warn(ctx, "session notification", fields...)
	} else {
		ctxzap.Error(ctx, "session notification", fields...)
	}
}

// MultiNotifier fans one notification out to every channel.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n entity.Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}
