package webhooks

import (
	"math/rand/v2"
	"time"
)

// Backoff returns how long to wait after the given failed attempt (1-indexed)
// for a subscription whose base retry delay is base.
type Backoff func(base time.Duration, attempt int) time.Duration

// LinearBackoff waits base * attempt.
func LinearBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(attempt)
}

// maxExponentialDelay caps ExponentialJitterBackoff.
const maxExponentialDelay = time.Hour

// ExponentialJitterBackoff waits base * 2^(attempt-1) plus up to 20% jitter.
func ExponentialJitterBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		return 0
	}
	if attempt > 32 {
		attempt = 32
	}
	delay := base << (attempt - 1)
	if delay <= 0 || delay > maxExponentialDelay {
		delay = maxExponentialDelay
	}
	jitter := time.Duration(rand.Int64N(int64(delay)/5 + 1))
	return delay + jitter
}

// BackoffByName resolves the configured policy name, defaulting to linear.
func BackoffByName(name string) Backoff {
	switch name {
	case "exponential":
		return ExponentialJitterBackoff
	default:
		return LinearBackoff
	}
}
