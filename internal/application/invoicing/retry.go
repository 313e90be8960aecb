package invoicing

import (
	"context"
	"time"
)

// Outcome classifies one clearance attempt.
type Outcome int

const (
	OutcomeSuccess   Outcome = iota // done, stop
	OutcomeTransient                // 5xx / network error, retry with backoff
	OutcomePermanent                // 4xx, do not retry
)

// RetryPolicy is a bounded exponential backoff: the first attempt is free,
// MaxRetries more follow, each after double the previous delay.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
}

// Delay returns the backoff before retry attempt n (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.InitialDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Run executes fn until it reports success, a permanent failure, the retry
// ceiling, or context cancellation. It returns the number of attempts made and
// the last outcome. fn receives the 1-based attempt number.
func (p RetryPolicy) Run(ctx context.Context, fn func(attempt int) Outcome) (int, Outcome) {
	maxAttempts := p.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var last Outcome
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		last = fn(attempt)
		if last != OutcomeTransient || attempt == maxAttempts {
			return attempt, last
		}
		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, last
		case <-timer.C:
		}
	}
	return maxAttempts, last
}
