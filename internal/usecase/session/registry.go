package session

import (
	"context"
	"fmt"
	"time"

	"github.com/futig/interview-orchestrator/internal/entity"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const minJanitorInterval = time.Second

// Registry keeps live controllers by session id. A session nobody touched
// for the idle TTL is evicted and its resources released.
type Registry struct {
	items  *cache.Cache
	logger *zap.Logger
}

func NewRegistry(idleTTL time.Duration, logger *zap.Logger) *Registry {
	interval := idleTTL / 4
	if interval < minJanitorInterval {
		interval = minJanitorInterval
	}

	r := &Registry{
		items:  cache.New(idleTTL, interval),
		logger: logger,
	}
	r.items.OnEvicted(r.onEvicted)

	return r
}

func (r *Registry) Add(ctrl *Controller) {
	r.items.Set(ctrl.ID(), ctrl, cache.DefaultExpiration)
}

// Get returns the controller and extends its idle deadline.
func (r *Registry) Get(sessionID string) (*Controller, error) {
	v, ok := r.items.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrSessionNotFound, sessionID)
	}

	ctrl := v.(*Controller)
	r.items.Set(sessionID, ctrl, cache.DefaultExpiration)

	return ctrl, nil
}

// Remove drops the session and runs its teardown.
func (r *Registry) Remove(sessionID string) bool {
	if _, ok := r.items.Get(sessionID); !ok {
		return false
	}
	r.items.Delete(sessionID)
	return true
}

func (r *Registry) Len() int {
	return r.items.ItemCount()
}

// CloseAll tears down every registered session, used on shutdown.
func (r *Registry) CloseAll() {
	for id := range r.items.Items() {
		r.items.Delete(id)
	}
}

func (r *Registry) onEvicted(sessionID string, v any) {
	ctrl, ok := v.(*Controller)
	if !ok {
		return
	}

	r.logger.Info("session evicted", zap.String("session_id", sessionID), zap.String("status", string(ctrl.Status())))
	ctrl.Close(context.Background())
}
