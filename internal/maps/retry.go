// README: Retry with exponential backoff for transient provider failures.
package maps

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

type RetryPolicy struct {
	MaxAttempts    int
	Backoff        time.Duration
	AttemptTimeout time.Duration
}

var DefaultRetry = RetryPolicy{
	MaxAttempts:    4,
	Backoff:        200 * time.Millisecond,
	AttemptTimeout: 10 * time.Second,
}

// transientStatuses are provider statuses worth retrying.
var transientStatuses = []string{"OVER_QUERY_LIMIT", "UNKNOWN_ERROR"}

func isTransient(parent context.Context, err error) bool {
	if err == nil || parent.Err() != nil {
		return false
	}
	// a single attempt timed out but the caller still has time
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	for _, s := range transientStatuses {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func withRetry(ctx context.Context, p RetryPolicy, call func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		err = call(attemptCtx)
		cancel()

		if err == nil || !isTransient(ctx, err) || attempt == attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
