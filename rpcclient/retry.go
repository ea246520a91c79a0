// Package rpcclient implements witness.RPCClient against a live Ethereum
// JSON-RPC endpoint, in both the native (per-transaction prestate
// tracer) and jerigon (single zeroTracer call) tracer modes.
package rpcclient

import (
	"context"
	"time"
)

// retryPolicy bounds how many times a call is retried and how long the
// client backs off between attempts, doubling each time.
type retryPolicy struct {
	backoff    time.Duration
	maxRetries int
}

// withRetry calls fn, retrying up to maxRetries additional times on
// error with exponential backoff. It gives up early if ctx is done.
func withRetry(ctx context.Context, p retryPolicy, fn func() error) error {
	var err error
	wait := p.backoff
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == p.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
