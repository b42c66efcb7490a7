package retry

import (
	"errors"
	"fmt"
	"time"
)

// ErrMaxRetriesExceeded is returned when every attempt failed
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Policy describes how many times and how far apart an operation is retried
type Policy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	RetryableFunc func(error) bool
}

// DefaultPolicy returns a conservative exponential policy
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Validate checks the policy for impossible values
func (p Policy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must be >= 0, got %d", p.MaxRetries)
	}
	if p.InitialDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("delays must be non-negative")
	}
	if p.MaxDelay > 0 && p.InitialDelay > p.MaxDelay {
		return fmt.Errorf("initial delay %s exceeds max delay %s", p.InitialDelay, p.MaxDelay)
	}
	if p.Multiplier != 0 && p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be >= 1, got %f", p.Multiplier)
	}
	return nil
}

// Backoff computes the wait before a given attempt
type Backoff struct {
	policy Policy
}

// NewBackoff creates a backoff calculator for the policy
func NewBackoff(policy Policy) *Backoff {
	return &Backoff{policy: policy}
}

// Calculate returns the delay before attempt n (1-based)
func (b *Backoff) Calculate(attempt int) time.Duration {
	if attempt <= 1 {
		return b.policy.InitialDelay
	}
	mult := b.policy.Multiplier
	if mult == 0 {
		mult = 1
	}
	delay := float64(b.policy.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= mult
		if b.policy.MaxDelay > 0 && time.Duration(delay) >= b.policy.MaxDelay {
			return b.policy.MaxDelay
		}
	}
	return time.Duration(delay)
}
