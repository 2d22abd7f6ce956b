package utils

import (
	"context"
	"strings"
	"time"
)

var sleep = time.Sleep

// WaitFor blocks for d or until ctx is done.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// RetryPolicy controls Retry.
type RetryPolicy struct {
	// Attempts is the total number of calls, at least one.
	Attempts int
	// Delay returns how long to wait after the failed attempt (starting at 1) and
	// whether another attempt should be made for err.
	Delay func(attempt int, err error) (time.Duration, bool)
	// OnRetry is called before waiting for the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Retry calls fn until it succeeds, the policy gives up or ctx is done. The
// last error is returned.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt == attempts || policy.Delay == nil {
			break
		}

		delay, retry := policy.Delay(attempt, err)
		if !retry {
			break
		}
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, delay, err)
		}
		if waitErr := WaitFor(ctx, delay); waitErr != nil {
			return result, waitErr
		}
	}

	return result, err
}

// TruncateForLog shortens the provided string to the specified limit, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
