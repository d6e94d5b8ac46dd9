package mailer

import (
	"math/rand"
	"net/http"
	"time"
)

// Backoff delays between send attempts.
var retryDelays = []time.Duration{
	250 * time.Millisecond,
	1 * time.Second,
	3 * time.Second,
}

const (
	// DefaultMaxAttempts is the default number of send attempts.
	DefaultMaxAttempts = 3

	// JitterFactor is the ±percentage of jitter applied to delays.
	JitterFactor = 0.2
)

// NextRetryDelay returns the delay before the next attempt, with jitter.
// attemptCount is 0-indexed (after the first failed attempt, attemptCount = 0).
func NextRetryDelay(attemptCount int) time.Duration {
	if attemptCount < 0 {
		attemptCount = 0
	}
	if attemptCount >= len(retryDelays) {
		attemptCount = len(retryDelays) - 1
	}

	base := retryDelays[attemptCount]
	jitterRange := float64(base) * JitterFactor
	jitter := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(base) + jitter)
}

// IsRetryableStatus reports whether an HTTP status is worth another attempt.
func IsRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
