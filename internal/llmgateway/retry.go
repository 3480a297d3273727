package llmgateway

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy controls the LLM Gateway's bounded-retry behavior. Shape
// mirrors the teacher's executor.RetryPolicy (exponential backoff with
// jitter), repurposed for provider calls instead of node execution.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultRetryPolicy is the default exponential schedule: up to 3 retries
// waiting about 1, 2 and 4 seconds, with each delay capped at 8 seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Delay computes the backoff before retry attempt n (1-indexed), honoring
// a server-suggested hint when present.
func (p RetryPolicy) Delay(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		return hint
	}
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		jitter := d * 0.1
		d += (rand.Float64()*2 - 1) * jitter
	}
	return time.Duration(d)
}
