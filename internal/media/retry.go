package media

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Retrying wraps a Resolver with fixed-count, fixed-backoff retries for
// transient extraction failures. Unsupported-source errors short-circuit.
type Retrying struct {
	inner    Resolver
	attempts int
	backoff  time.Duration
}

func NewRetrying(inner Resolver, attempts int, backoff time.Duration) *Retrying {
	return &Retrying{inner: inner, attempts: attempts, backoff: backoff}
}

func (r *Retrying) Resolve(ctx context.Context, query string) (*Track, error) {
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		track, err := r.inner.Resolve(ctx, query)
		if err == nil {
			return track, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
		slog.Warn("media extraction failed, will retry", "query", query, "attempt", attempt, "attempts", r.attempts, "error", err)
		if attempt == r.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.backoff):
		}
	}
	return nil, fmt.Errorf("media extraction failed after %d attempts: %w", r.attempts, lastErr)
}
