package timer

import (
	"fmt"
	"sync"
	"time"

	"github.com/futig/interview-orchestrator/internal/entity"
)

const defaultTick = time.Second

// Timer is a per-question countdown with one-second granularity.
// onTimeout fires exactly once when the countdown reaches zero.
type Timer struct {
	tick time.Duration

	mu        sync.Mutex
	remaining int
	running   bool
	stop      chan struct{}
	done      chan struct{}
}

type Option func(*Timer)

// WithTick overrides the length of one countdown step.
func WithTick(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.tick = d
		}
	}
}

func New(opts ...Option) *Timer {
	t := &Timer{tick: defaultTick}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start resets the countdown to seconds and begins counting down.
// A countdown already running is stopped first and never fires.
func (t *Timer) Start(seconds int, onTimeout func()) error {
	if seconds < 1 {
		return fmt.Errorf("%w: duration must be positive, got %d", entity.ErrInvalidParameter, seconds)
	}

	t.Stop()

	t.mu.Lock()
	stop := make(chan struct{})
	done := make(chan struct{})
	t.remaining = seconds
	t.running = true
	t.stop = stop
	t.done = done
	t.mu.Unlock()

	go t.run(stop, done, onTimeout)

	return nil
}

// Stop halts the countdown. It is safe to call on a stopped timer and
// after the timeout has fired. It returns once the countdown goroutine is gone.
func (t *Timer) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.stop)
	done := t.done
	t.mu.Unlock()

	<-done
}

func (t *Timer) State() entity.TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return entity.TimerState{
		RemainingSeconds: t.remaining,
		Running:          t.running,
	}
}

func (t *Timer) run(stop <-chan struct{}, done chan<- struct{}, onTimeout func()) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			close(done)
			return
		case <-ticker.C:
			if t.step(stop) {
				// running is already false, so Stop from inside onTimeout returns at once
				close(done)
				if onTimeout != nil {
					onTimeout()
				}
				return
			}
		}
	}
}

// step counts one tick down and reports whether the countdown just expired.
func (t *Timer) step(stop <-chan struct{}) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	// a Stop that raced with this tick wins
	select {
	case <-stop:
		return false
	default:
	}

	t.remaining--
	if t.remaining > 0 {
		return false
	}

	t.remaining = 0
	t.running = false
	return true
}
