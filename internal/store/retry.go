package store

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	maxWriteAttempts = 3
	writeRetryDelay  = 500 * time.Millisecond
)

// withRetry runs op up to maxWriteAttempts times, sleeping delay*attempt between tries.
// Validation failures and context cancellation are returned immediately.
func withRetry(ctx context.Context, name string, delay time.Duration, op func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if errors.Is(err, ErrValidation) || ctx.Err() != nil {
			return err
		}
		if attempt == maxWriteAttempts {
			break
		}
		slog.Warn("store write failed, retrying", "op", name, "attempt", attempt, "error", err)

		timer := time.NewTimer(delay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
