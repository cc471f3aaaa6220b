// Package backoff computes retry delays for transient request failures.
package backoff

import (
	"math"
	"time"
)

// Policy describes an exponential delay schedule. The zero value uses defaults.
type Policy struct {
	Initial time.Duration // default: 250ms
	Max     time.Duration // default: 15s
}

// Default is the policy used by the REST client between poll retries.
var Default = Policy{Initial: 250 * time.Millisecond, Max: 15 * time.Second}

// Delay returns the wait before the given retry attempt.
// Attempt 1 returns Initial, attempt 2 doubles it, and so on up to Max.
func (p Policy) Delay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = Default.Initial
	}
	maxDelay := p.Max
	if maxDelay <= 0 {
		maxDelay = Default.Max
	}

	if attempt < 1 {
		return initial
	}
	delay := float64(initial) * math.Pow(2.0, float64(attempt-1))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	return time.Duration(delay)
}
