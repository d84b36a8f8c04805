package platforms

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// withRetry runs fn with bounded exponential backoff. fn signals a
// transient failure by wrapping its error with retry.RetryableError;
// anything else fails immediately. attempts counts retries, not calls.
func withRetry(ctx context.Context, attempts int, base time.Duration, fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		return fn(ctx)
	}
	if base <= 0 {
		base = time.Second
	}
	backoff := retry.WithMaxRetries(uint64(attempts), retry.NewExponential(base))
	return retry.Do(ctx, backoff, fn)
}
