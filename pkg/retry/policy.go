package retry

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ErrMaxRetriesExceeded is returned once the policy gives up
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Unlimited makes the retrier keep going until the operation succeeds or ctx ends
const Unlimited = -1

// Policy describes how an operation is retried
type Policy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	Jitter         bool
	// RetryableFunc overrides the default "retry everything" classification.
	RetryableFunc func(err error) bool
}

// Validate checks the policy is usable
func (p Policy) Validate() error {
	if p.MaxRetries < Unlimited {
		return fmt.Errorf("max retries must be >= %d", Unlimited)
	}
	if p.InitialBackoff < 0 || p.MaxBackoff < 0 {
		return fmt.Errorf("backoff durations cannot be negative")
	}
	if p.MaxBackoff > 0 && p.InitialBackoff > p.MaxBackoff {
		return fmt.Errorf("initial backoff exceeds max backoff")
	}
	if p.Multiplier != 0 && p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be >= 1")
	}
	return nil
}

func (p Policy) exhausted(attempt int) bool {
	return p.MaxRetries != Unlimited && attempt >= p.MaxRetries
}

// Backoff computes exponential delays for a policy
type Backoff struct {
	policy Policy
}

// NewBackoff creates a backoff calculator
func NewBackoff(policy Policy) *Backoff {
	return &Backoff{policy: policy}
}

// Calculate returns the delay before the given (1-based) attempt
func (b *Backoff) Calculate(attempt int) time.Duration {
	if b.policy.InitialBackoff == 0 {
		return 0
	}
	multiplier := b.policy.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}
	delay := float64(b.policy.InitialBackoff) * math.Pow(multiplier, float64(attempt-1))
	if b.policy.MaxBackoff > 0 && delay > float64(b.policy.MaxBackoff) {
		delay = float64(b.policy.MaxBackoff)
	}
	if b.policy.Jitter {
		delay = delay/2 + rand.Float64()*delay/2
	}
	return time.Duration(delay)
}
