package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/futig/interview-orchestrator/internal/config"
	"github.com/futig/interview-orchestrator/internal/entity"
	"github.com/futig/interview-orchestrator/internal/telegram/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	maxSendRetries = 3
	retrySleepBase = time.Second
)

// Sender is the part of the bot API the notifier needs
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier forwards session notifications to an operators chat
type Notifier struct {
	sender     Sender
	chatID     int64
	onlyErrors bool
	retryDelay time.Duration
	logger     *zap.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewNotifier authorizes the bot and returns a notifier posting to cfg.ChatID
func NewNotifier(cfg config.TelegramConfig, logger *zap.Logger) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}
	api.Debug = false

	logger.Info("telegram bot authorized",
		zap.String("username", api.Self.UserName),
		zap.Int64("id", api.Self.ID),
	)

	return NewNotifierWithSender(api, cfg, logger), nil
}

func NewNotifierWithSender(sender Sender, cfg config.TelegramConfig, logger *zap.Logger) *Notifier {
	return &Notifier{
		sender:     sender,
		chatID:     cfg.ChatID,
		onlyErrors: cfg.OnlyErrors,
		retryDelay: retrySleepBase,
		logger:     logger,
	}
}

func (n *Notifier) Notify(ctx context.Context, notification entity.Notification) {
	if !n.wants(notification) {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}

	ctx = context.WithoutCancel(ctx)
	text := render.Notification(notification)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.send(ctx, text); err != nil {
			ctxzap.Error(ctx, "failed to send telegram notification",
				zap.Error(err),
				zap.Int64("chat_id", n.chatID),
				zap.String("event_type", string(notification.Event)),
			)
		}
	}()
}

// Close waits for messages already being sent.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telegram notifications not flushed: %w", ctx.Err())
	}
}

func (n *Notifier) wants(notification entity.Notification) bool {
	switch notification.Event {
	case entity.CallbackEventTypeError:
		return true
	case entity.CallbackEventTypeCompleted:
		return !n.onlyErrors
	default:
		return false
	}
}

func (n *Notifier) send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	return retry.Do(
		func() error {
			_, err := n.sender.Send(msg)
			return err
		},
		retry.Attempts(maxSendRetries),
		retry.Delay(n.retryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			ctxzap.Warn(ctx, "failed to send message, retrying",
				zap.Error(err),
				zap.Uint("attempt", attempt+1),
				zap.Int64("chat_id", n.chatID),
			)
		}),
	)
}
