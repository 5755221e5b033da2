// ABOUTME: Declarative reconnection backoff policy.
// ABOUTME: Exponential delay schedule with a hard cap, independently testable.

package supervisor

import (
	"math"
	"time"
)

// RetryPolicy describes the reconnection schedule: how many attempts are
// allowed and how long to wait before each one.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches the production reconnection schedule: ten
// attempts, 5s base delay growing by 1.5x, capped at 60s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   5 * time.Second,
		Multiplier:  1.5,
		MaxDelay:    60 * time.Second,
	}
}

// Delay returns the wait before the given attempt (1-based):
// base × multiplier^(attempt-1), capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1)))
	if d > p.MaxDelay || d < 0 {
		return p.MaxDelay
	}
	return d
}

// Exhausted reports whether the given attempt count is past the policy's
// limit.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt > p.MaxAttempts
}
