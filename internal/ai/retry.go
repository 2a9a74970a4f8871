package ai

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const retryAttempts = 3

// maxRetryDelay caps how long a Retry-After hint can stall a session.
const maxRetryDelay = 8 * time.Second

// retryBaseDelay is the first backoff step; attempts wait 1s, 2s, 4s.
// Tests shrink it so the suite stays fast.
var retryBaseDelay = time.Second

// withRetry runs fn up to retryAttempts times. Rate-limit and transient
// errors are retried with exponential backoff; a Retry-After hint from the
// provider overrides the backoff, capped at maxRetryDelay. Auth and
// malformed-response errors are returned immediately.
func withRetry(ctx context.Context, provider string, fn func(context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == retryAttempts {
			break
		}
		wait := nextDelay(attempt, err)
		slog.Warn("AI request failed; retrying",
			"provider", provider,
			"attempt", attempt,
			"max_attempts", retryAttempts,
			"wait", wait.String(),
			"error", err,
		)
		if err := sleepWithContext(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

// nextDelay computes the wait before the given attempt's retry: exponential
// backoff from retryBaseDelay, unless err carries a Retry-After hint, which
// wins but never exceeds maxRetryDelay.
func nextDelay(attempt int, err error) time.Duration {
	wait := retryBaseDelay << uint(attempt-1)
	if hint := retryAfterHint(err); hint > 0 {
		wait = hint
		if wait > maxRetryDelay {
			wait = maxRetryDelay
		}
	}
	return wait
}

// retryAfterHint returns the provider-requested delay carried by err, if any.
func retryAfterHint(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
