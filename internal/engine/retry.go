package engine

import (
	"context"
	"time"

	"vmpool/internal/domain"
)

const maxRetryBackoff = 2 * time.Second

// RetryPolicy bounds how often a contended operation is re-attempted.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// RetryPolicyFrom converts the configured retry settings into a policy.
func RetryPolicyFrom(cfg domain.RetryConfig) RetryPolicy {
	return RetryPolicy{Attempts: cfg.Attempts, Backoff: cfg.Backoff()}
}

// Retry runs fn until it succeeds, fails with a non-retryable error, or the
// policy's attempts are used up. Only contention is retried; every other error
// is returned to the caller unchanged. The delay doubles after each attempt.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !domain.IsRetryable(err) || attempt == attempts {
			return err
		}
		timer := time.NewTimer(retryDelay(policy.Backoff, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func retryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return delay
}
