// Package retry reruns a flaky operation a bounded number of times.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ascbridge/internal/logging"
)

const (
	DefaultMaxAttempts = 10
	DefaultBackoff     = time.Second
)

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration

	// ShortCircuit stops on the first failure that is not a transport
	// failure. Off by default: any failure is retried.
	ShortCircuit bool
}

// DefaultPolicy returns ten attempts one second apart.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Backoff: DefaultBackoff}
}

// Attempt describes one finished try.
type Attempt struct {
	Index   int // 1-based
	Err     error
	Started time.Time
	Elapsed time.Duration
}

// Supervisor runs a function under a Policy.
type Supervisor struct {
	Policy    Policy
	OnAttempt func(Attempt) // optional, called after every try
}

// New returns a supervisor for p.
func New(p Policy) *Supervisor {
	return &Supervisor{Policy: p}
}

// IsPermanent reports whether err, or anything it wraps, says retrying
// cannot help.
func IsPermanent(err error) bool {
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}

// IsTransport reports whether err came from the machinery around the
// operation rather than the operation itself.
func IsTransport(err error) bool {
	var t interface{ Transport() bool }
	return errors.As(err, &t) && t.Transport()
}

// Run calls fn until it succeeds, a permanent error is returned, or
// MaxAttempts is reached. The error of the final attempt is returned
// unmodified. Attempts never overlap.
func (s *Supervisor) Run(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	limit := s.Policy.MaxAttempts
	if limit < 1 {
		limit = 1
	}

	var lastErr error
	for attempt := 1; attempt <= limit; attempt++ {
		started := time.Now()
		err := fn(ctx, attempt)
		elapsed := time.Since(started)

		if s.OnAttempt != nil {
			s.OnAttempt(Attempt{Index: attempt, Err: err, Started: started, Elapsed: elapsed})
		}
		logging.Audit(logging.AuditEvent{
			Type:     logging.AuditRetryAttempt,
			Success:  err == nil,
			Duration: elapsed,
			Error:    errString(err),
			Fields:   map[string]interface{}{"attempt": attempt, "max_attempts": limit},
		})

		if err == nil {
			if attempt > 1 {
				logging.Retry("Succeeded on attempt %d/%d", attempt, limit)
			}
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			logging.RetryWarn("Attempt %d/%d failed permanently: %v", attempt, limit, err)
			return err
		}
		if s.Policy.ShortCircuit && !IsTransport(err) {
			logging.RetryWarn("Attempt %d/%d failed, not retrying: %v", attempt, limit, err)
			return err
		}
		if attempt == limit {
			break
		}

		logging.RetryWarn("Attempt %d/%d failed: %v (retrying in %s)", attempt, limit, err, s.Policy.Backoff)
		if !sleep(ctx, s.Policy.Backoff) {
			logging.RetryWarn("Retry abandoned: %v", ctx.Err())
			return lastErr
		}
	}

	logging.RetryWarn("Giving up after %d attempts", limit)
	return lastErr
}

// sleep waits d or until ctx is done, reporting whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// String renders the policy for logs.
func (p Policy) String() string {
	return fmt.Sprintf("max=%d backoff=%s short_circuit=%t", p.MaxAttempts, p.Backoff, p.ShortCircuit)
}
