package api

import (
	"math"
	"math/rand"
	"time"
)

// IsRetryableStatus checks if an HTTP status code is retryable.
// Retryable: 429, 500-504.
func IsRetryableStatus(status int) bool {
	return status == 429 || (status >= 500 && status < 600)
}

// Backoff calculates the exponential backoff delay for a given attempt,
// with 0-25% jitter to prevent thundering herd.
func Backoff(attempt int, initial, max time.Duration) time.Duration {
	delay := float64(initial) * math.Pow(2.0, float64(attempt))
	capped := math.Min(delay, float64(max))
	jitter := rand.Float64() * 0.25 * capped
	return time.Duration(capped + jitter)
}
