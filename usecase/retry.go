package usecase

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy decides how many dispatch attempts a job gets and how long to
// wait between them.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Factor      float64
	Cap         time.Duration
	JitterFrac  float64
}

// DefaultRetryPolicy is a conservative baseline: 3 attempts, exponential
// backoff from 1s doubling up to 30s, jitter up to 20% of the computed delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Base:        time.Second,
		Factor:      2.0,
		Cap:         30 * time.Second,
		JitterFrac:  0.2,
	}
}

// Backoff returns the delay before the given retry. attempt is the number of
// dispatch attempts already made, so the first retry (attempt=1) waits Base.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.Base) * math.Pow(p.Factor, float64(attempt-1))
	if capped := float64(p.Cap); delay > capped {
		delay = capped
	}
	if p.JitterFrac > 0 {
		delay += rand.Float64() * p.JitterFrac * delay
	}
	return time.Duration(delay)
}
