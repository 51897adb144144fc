package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// retryableStatus lists the HTTP codes worth another attempt.
var retryableStatus = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
}

// retrier runs provider calls with a per-attempt timeout and a fixed delay
// between attempts on retryable failures.
type retrier struct {
	log        *slog.Logger
	maxRetries int
	delay      time.Duration
	timeout    time.Duration
	// status extracts the HTTP status from a provider error, or 0.
	status func(error) int
}

func (r retrier) do(ctx context.Context, op string, call func(ctx context.Context) error) error {
	var err error
	for i := 0; i <= r.maxRetries; i++ {
		err = r.attempt(ctx, call)
		if err == nil {
			return nil
		}

		code := r.status(err)
		r.log.WarnContext(ctx, "Provider call failed, checking for retry", "operation", op, "attempt", i+1, "max_retries", r.maxRetries, "status", code, "error", err)

		if !retryableStatus[code] {
			return fmt.Errorf("%s failed: %w", op, err)
		}
		if i == r.maxRetries {
			break
		}

		r.log.InfoContext(ctx, "Retrying provider call", "operation", op, "delay", r.delay, "status", code)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled while waiting to retry: %w", op, ctx.Err())
		case <-time.After(r.delay):
		}
	}

	r.log.ErrorContext(ctx, "Provider call failed after max retries", "operation", op, "error", err)
	return fmt.Errorf("%s failed after %d retries: %w", op, r.maxRetries, err)
}

func (r retrier) attempt(ctx context.Context, call func(ctx context.Context) error) error {
	if r.timeout <= 0 {
		return call(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return call(ctx)
}
