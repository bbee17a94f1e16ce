package outbox

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds the dispatcher's retry behavior.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy mirrors the production defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 10,
		BaseBackoff: time.Second,
		MaxBackoff:  2 * time.Minute,
	}
}

// Backoff returns the delay before attempt n+1, given that attempt n just
// failed: clamp(base * 2^(n-1) * jitter, base, max) with jitter uniform in
// [0.5, 1.5].
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	exp := float64(p.BaseBackoff) * math.Pow(2, float64(n-1))
	// Even the smallest jitter saturates the clamp; avoids Duration overflow
	// at high attempt counts.
	if exp*0.5 >= float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	jitter := 0.5 + rand.Float64()
	d := time.Duration(exp * jitter)

	if d < p.BaseBackoff {
		return p.BaseBackoff
	}
	if d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}
