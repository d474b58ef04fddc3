package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Enumeration retry defaults: three attempts with a fixed ten second pause.
const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 10 * time.Second
)

// FixedRetryPolicy implements RetryPolicy with a constant delay between attempts.
type FixedRetryPolicy struct {
	maxAttempts int
	delay       time.Duration
}

// NewFixedRetryPolicy builds a policy allowing maxAttempts total attempts.
func NewFixedRetryPolicy(maxAttempts int, delay time.Duration) *FixedRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultRetryAttempts
	}
	if delay < 0 {
		delay = 0
	}
	return &FixedRetryPolicy{
		maxAttempts: maxAttempts,
		delay:       delay,
	}
}

// ShouldRetry decides whether the error is retryable after attempt attempts.
func (p *FixedRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Backoff returns the wait duration before the next attempt.
func (p *FixedRetryPolicy) Backoff(int) time.Duration {
	return p.delay
}

// RetryingEnumerator re-runs a whole enumeration until it succeeds or the
// policy gives up.
type RetryingEnumerator struct {
	inner  Enumerator
	policy RetryPolicy
	logger *zap.Logger
}

// NewRetryingEnumerator wraps inner with policy.
func NewRetryingEnumerator(inner Enumerator, policy RetryPolicy, logger *zap.Logger) *RetryingEnumerator {
	if policy == nil {
		policy = NewFixedRetryPolicy(DefaultRetryAttempts, DefaultRetryDelay)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingEnumerator{inner: inner, policy: policy, logger: logger}
}

// Enumerate implements Enumerator.
func (r *RetryingEnumerator) Enumerate(ctx context.Context) ([]Site, error) {
	var sites []Site
	err := Retry(ctx, r.policy, r.logger, "enumerate", func(ctx context.Context) error {
		var err error
		sites, err = r.inner.Enumerate(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sites, nil
}

// Retry calls fn until it succeeds or policy gives up. The final error is
// wrapped with op and the number of attempts made.
func Retry(ctx context.Context, policy RetryPolicy, logger *zap.Logger, op string, fn func(context.Context) error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !policy.ShouldRetry(err, attempt) {
			return fmt.Errorf("%s after %d attempt(s): %w", op, attempt, err)
		}
		delay := policy.Backoff(attempt)
		logger.Warn(op+" failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := sleepContext(ctx, delay); err != nil {
			return fmt.Errorf("%s retry wait: %w", op, err)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
