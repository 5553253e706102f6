package sop

import (
	"context"
	"errors"
	log "log/slog"
	"os"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry executes task with Fibonacci backoff, up to 5 retries, the same
// policy the wider SOP codebase uses for storage I/O. It wraps only the
// underlying file/page-store call; per spec §7 the BRIN and KeyToPageIndex
// data plane itself never retries.
func Retry(ctx context.Context, task func(ctx context.Context) error) error {
	b := retry.NewFibonacci(100 * time.Millisecond)
	err := retry.Do(ctx, retry.WithMaxRetries(5, b), func(ctx context.Context) error {
		e := task(ctx)
		if e == nil {
			return nil
		}
		if ShouldRetry(e) {
			return retry.RetryableError(e)
		}
		return e
	})
	if err != nil {
		log.Warn("herddb storage I/O gave up after retries", "error", err)
	}
	return err
}

// ShouldRetry reports whether err is a transient condition worth retrying.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, os.ErrExist) {
		return false
	}
	return true
}
