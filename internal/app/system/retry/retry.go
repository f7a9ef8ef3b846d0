// Package retry wraps store calls with bounded retries for transient
// failures. Constraint violations and other application errors are never
// retried, only timeouts and connection-level faults, which are the
// failures a second attempt can actually fix.
package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Default policy used when a zero Policy is given.
const (
	DefaultAttempts = 3
	DefaultBackoff  = 50 * time.Millisecond
)

// Policy bounds the retry loop.
type Policy struct {
	Attempts int           // total tries, including the first
	Backoff  time.Duration // sleep before try n is Backoff * n
}

// IsTransient reports whether err looks like a store fault worth retrying:
// a timeout, a dropped connection, or server (re)selection in progress.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		// Shutdown/stepdown codes: the write may succeed on the next
		// primary.
		for _, code := range []int{6, 7, 89, 91, 189, 262, 10107, 11600, 11602, 13435, 13436} {
			if se.HasErrorCode(code) {
				return true
			}
		}
	}
	return false
}

// Do runs fn until it succeeds, fails with a non-transient error, exhausts
// the policy, or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		p.Attempts = DefaultAttempts
	}
	if p.Backoff <= 0 {
		p.Backoff = DefaultBackoff
	}

	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !IsTransient(err) || attempt == p.Attempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff * time.Duration(attempt)):
		}
	}
	return err
}
