package webhooks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLinearBackoff(t *testing.T) {
	base := 60 * time.Second

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{attempt: 0, expected: 60 * time.Second},
		{attempt: 1, expected: 60 * time.Second},
		{attempt: 2, expected: 120 * time.Second},
		{attempt: 3, expected: 180 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, LinearBackoff(base, tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialJitterBackoff(t *testing.T) {
	base := time.Second

	for attempt := 1; attempt <= 4; attempt++ {
		floor := base << (attempt - 1)
		got := ExponentialJitterBackoff(base, attempt)
		assert.GreaterOrEqual(t, got, floor)
		assert.LessOrEqual(t, got, floor+floor/5)
	}

	assert.LessOrEqual(t, ExponentialJitterBackoff(time.Minute, 40), maxExponentialDelay+maxExponentialDelay/5)
	assert.Zero(t, ExponentialJitterBackoff(0, 3))
}

func TestBackoffByName(t *testing.T) {
	assert.Equal(t, 2*time.Second, BackoffByName("linear")(time.Second, 2))
	assert.Equal(t, 2*time.Second, BackoffByName("")(time.Second, 2))
	assert.GreaterOrEqual(t, BackoffByName("exponential")(time.Second, 3), 4*time.Second)
}
