package api

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// retryPolicy is a fixed attempt count with exponential backoff: the wait
// after failed attempt n (1-based) is base * 2^(n-1).
type retryPolicy struct {
	attempts int
	base     time.Duration
	sleep    SleepFunc
	log      *zap.Logger
}

// do runs fn until it succeeds or attempts are exhausted. It returns the
// number of attempts made and the last error.
func (p retryPolicy) do(ctx context.Context, op string, fn func(context.Context) error) (int, error) {
	attempts := max(p.attempts, 1)
	var lastErr error

	for attempt := range attempts {
		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				p.log.Info("retry succeeded", zap.String("op", op), zap.Int("attempt", attempt+1))
			}
			return attempt + 1, nil
		}
		lastErr = err

		// Context errors are never retried.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return attempt + 1, err
		}

		p.log.Warn("attempt failed",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Int("of", attempts),
			zap.Error(err))

		// No sleep after the last attempt.
		if attempt == attempts-1 {
			break
		}

		wait := p.base * time.Duration(1<<attempt)
		if err := p.sleep(ctx, wait); err != nil {
			return attempt + 1, err
		}
	}

	return attempts, lastErr
}
