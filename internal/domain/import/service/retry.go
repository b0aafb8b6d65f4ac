package service

import (
	"context"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// Default retry policy for transient storage failures.
const (
	defaultRetryBaseDelay   = 200 * time.Millisecond
	defaultRetryMaxDelay    = 5 * time.Second
	defaultRetryMaxAttempts = 4
)

// retryPolicy bounds the backoff applied to transient failures.
type retryPolicy struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts uint64
}

func (p retryPolicy) withDefaults() retryPolicy {
	if p.baseDelay <= 0 {
		p.baseDelay = defaultRetryBaseDelay
	}
	if p.maxDelay <= 0 {
		p.maxDelay = defaultRetryMaxDelay
	}
	if p.maxAttempts == 0 {
		p.maxAttempts = defaultRetryMaxAttempts
	}
	return p
}

// transientMarkers are substrings that mark an error as infrastructure
// flakiness rather than bad input. Matching is heuristic: collaborator
// stores surface these in error text, not typed sentinels.
var transientMarkers = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection refused",
	"connection reset",
	"broken pipe",
	"unavailable",
	"temporarily",
	"too many requests",
	"econnreset",
	"eof",
	"i/o error",
	"try again",
}

// isTransient classifies an error by its text. Context cancellation is
// never transient: retrying a cancelled operation only delays shutdown.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "context canceled") || strings.Contains(msg, "context deadline") {
		return false
	}
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// run executes fn, retrying transient failures with jittered exponential
// backoff. Non-transient errors propagate immediately.
func (p retryPolicy) run(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.NewExponential(p.baseDelay)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithCappedDuration(p.maxDelay, backoff)
	backoff = retry.WithMaxRetries(p.maxAttempts, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
