package retry

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	defaultAttempts = 3
	defaultMaxDelay = 2 * time.Second
	defaultDelay    = 100 * time.Millisecond
)

type RetryConfig struct {
	Attempts uint          `env:"ATTEMPTS" envDefault:"3"`
	Delay    time.Duration `env:"DELAY" envDefault:"100ms"`
	MaxDelay time.Duration `env:"MAX_DELAY" envDefault:"2s"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

func (rc *RetryConfig) ToRetryOptions() []retry.Option {
	// retry-go treats zero attempts as "until success"
	attempts := rc.Attempts
	if attempts == 0 {
		attempts = 1
	}

	return []retry.Option{
		retry.Attempts(attempts),
		retry.MaxDelay(rc.MaxDelay),
		retry.Delay(rc.Delay),
		retry.LastErrorOnly(true),
	}
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		Attempts: defaultAttempts,
		Delay:    defaultDelay,
		MaxDelay: defaultMaxDelay,
	}
}

// Do runs fn under the configured policy. Errors for which retryable returns
// false stop the loop immediately. A zero Timeout means no overall deadline.
func (rc *RetryConfig) Do(ctx context.Context, fn func(ctx context.Context) error, retryable func(error) bool) error {
	if rc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rc.Timeout)
		defer cancel()
	}

	opts := append(rc.ToRetryOptions(), retry.Context(ctx))
	if retryable != nil {
		opts = append(opts, retry.RetryIf(retryable))
	}

	return retry.Do(func() error { return fn(ctx) }, opts...)
}
