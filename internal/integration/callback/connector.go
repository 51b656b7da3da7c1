package callback

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/futig/interview-orchestrator/internal/config"
	"github.com/futig/interview-orchestrator/internal/entity"
	"github.com/futig/interview-orchestrator/internal/integration/common"
	pkghttp "github.com/futig/interview-orchestrator/pkg/http"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	defaultQueueSize       = 256
	defaultLaneIdleTimeout = 30 * time.Second
)

type delivery struct {
	ctx   context.Context
	url   string
	event *entity.CallbackEvent
}

// Connector posts session notifications to the callback URL given at
// session start. Each session gets its own queue and worker, so its events
// arrive in order and a slow receiver only delays its own session. Notify
// never blocks the caller.
type Connector struct {
	config    config.CallbackConnectorConfig
	connector *pkghttp.Connector
	logger    *zap.Logger

	queueSize   int
	idleTimeout time.Duration

	mu     sync.Mutex
	lanes  map[string]chan delivery
	closed bool
	wg     sync.WaitGroup
}

func NewConnector(
	cfg config.CallbackConnectorConfig,
	logger *zap.Logger,
) *Connector {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	idle := cfg.LaneIdleTimeout
	if idle <= 0 {
		idle = defaultLaneIdleTimeout
	}

	return &Connector{
		connector:   common.NewBaseConnector("callback", cfg.HTTPClientConfig, logger),
		config:      cfg,
		logger:      logger,
		queueSize:   size,
		idleTimeout: idle,
		lanes:       make(map[string]chan delivery),
	}
}

// Notify queues n for delivery. Notifications without a callback URL are skipped.
func (c *Connector) Notify(ctx context.Context, n entity.Notification) {
	if n.CallbackURL == "" {
		return
	}

	d := delivery{
		ctx:   context.WithoutCancel(ctx),
		url:   n.CallbackURL,
		event: toEvent(n),
	}
	key := laneKey(n)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		ctxzap.Warn(ctx, "callback connector closed, notification dropped", zap.String("event_type", string(n.Event)))
		return
	}

	lane, ok := c.lanes[key]
	if !ok {
		lane = make(chan delivery, c.queueSize)
		c.lanes[key] = lane
		c.wg.Add(1)
		go c.run(key, lane)
	}

	select {
	case lane <- d:
	default:
		ctxzap.Warn(ctx, "callback queue is full, notification dropped",
			zap.String("event_type", string(n.Event)),
			zap.String("session_id", n.SessionID),
		)
	}
}

// Close stops accepting notifications and waits until every queue is
// drained or ctx is done.
func (c *Connector) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		for _, lane := range c.lanes {
			close(lane)
		}
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("callback queues not drained: %w", ctx.Err())
	}
}

// run delivers one session's notifications in order. The worker exits
// once its queue has stayed empty for idleTimeout.
func (c *Connector) run(key string, lane chan delivery) {
	defer c.wg.Done()

	idle := time.NewTimer(c.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case d, ok := <-lane:
			if !ok {
				return
			}
			c.deliver(d)
			idle.Reset(c.idleTimeout)
		case <-idle.C:
			c.mu.Lock()
			if len(lane) == 0 && !c.closed {
				delete(c.lanes, key)
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
			idle.Reset(c.idleTimeout)
		}
	}
}

func (c *Connector) deliver(d delivery) {
	err := c.config.Retry.Do(d.ctx, func(ctx context.Context) error {
		return c.Send(ctx, d.url, uuid.New().String(), d.event)
	}, pkghttp.IsRetryable)
	if err != nil {
		ctxzap.Error(d.ctx, "failed to deliver callback", zap.Error(err))
	}
}

func (c *Connector) activeLanes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lanes)
}

func laneKey(n entity.Notification) string {
	if n.SessionID != "" {
		return n.SessionID
	}
	return n.CallbackURL
}

func (c *Connector) Send(ctx context.Context, callbackURL string, requestID string, event *entity.CallbackEvent) error {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	ctxzap.Debug(ctx, "sending callback event",
		zap.String("event_type", string(event.Event)),
		zap.String("callback_url", callbackURL),
		zap.String("request_id", requestID),
		zap.String("timestamp", event.Timestamp),
	)

	opts := []pkghttp.RequestOpt{
		pkghttp.WithHeader("X-Request-ID", requestID),
		pkghttp.WithURL(callbackURL),
	}

	err := c.connector.DoRequest(ctx, http.MethodPost, "", event, nil, opts...)
	if err != nil {
		return fmt.Errorf("failed to send callback, event_type: %s, url: %s, error: %w", string(event.Event), callbackURL, err)
	}

	ctxzap.Info(ctx, "callback sent successfully",
		zap.String("event_type", string(event.Event)),
		zap.String("callback_url", callbackURL),
		zap.String("request_id", requestID),
	)
	return nil
}

func toEvent(n entity.Notification) *entity.CallbackEvent {
	event := &entity.CallbackEvent{Event: n.Event, Data: n}

	if n.Event == entity.CallbackEventTypeError {
		event.Data = &entity.CallbackErrorData{
			Error: entity.CallbackErrorDetails{
				Code:        n.Code,
				Message:     n.Message,
				Recoverable: n.Recoverable,
				Retryable:   n.Retryable,
				Details: map[string]any{
					"session_id":     n.SessionID,
					"interview_id":   n.InterviewID,
					"session_status": n.Status,
				},
			},
		}
	}

	return event
}
