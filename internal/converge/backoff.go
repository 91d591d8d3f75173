package converge

import (
	"math"
	"time"
)

// Backoff decides how long to wait before the attempt-th retry (0-based)
// and how many retries are allowed in total.
type Backoff interface {
	NextDelay(attempt int) time.Duration
	MaxAttempts() int
}

// FixedBackoff waits the same delay before every attempt.
type FixedBackoff struct {
	Delay    time.Duration
	Attempts int
}

// NextDelay returns the fixed delay.
func (b FixedBackoff) NextDelay(int) time.Duration { return b.Delay }

// MaxAttempts returns the attempt bound.
func (b FixedBackoff) MaxAttempts() int { return b.Attempts }

// ExponentialBackoff grows the delay by Factor per attempt, capped at Max.
type ExponentialBackoff struct {
	Base     time.Duration
	Max      time.Duration
	Factor   float64
	Attempts int
}

// NextDelay returns Base*Factor^attempt, capped at Max when Max > 0.
func (b ExponentialBackoff) NextDelay(attempt int) time.Duration {
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}

	d := float64(b.Base) * math.Pow(factor, float64(max(attempt, 0)))
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}

	return time.Duration(d)
}

// MaxAttempts returns the attempt bound.
func (b ExponentialBackoff) MaxAttempts() int { return b.Attempts }

// Defaults for the read-after-write and purge waits.
const (
	DefaultStaleDelay    = 1 * time.Second
	DefaultStaleAttempts = 10
	DefaultPurgeDelay    = 500 * time.Millisecond
	DefaultPurgeAttempts = 24
)

// DefaultStaleBackoff re-reads once a second, ten times at most.
func DefaultStaleBackoff() Backoff {
	return FixedBackoff{Delay: DefaultStaleDelay, Attempts: DefaultStaleAttempts}
}

// DefaultPurgeBackoff polls every 500ms for about twelve seconds.
func DefaultPurgeBackoff() Backoff {
	return FixedBackoff{Delay: DefaultPurgeDelay, Attempts: DefaultPurgeAttempts}
}
