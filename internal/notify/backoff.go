package notify

import (
	"math/rand"
	"time"
)

// JitterFactor is the ±fraction of jitter applied to retry delays.
const JitterFactor = 0.2

// maxBackoffDoublings caps the exponent so delays stay bounded.
const maxBackoffDoublings = 6

// retryDelay returns base doubled per attempt with ±20% jitter.
// attempt is 1-indexed: the delay before the second try is retryDelay(base, 1).
func retryDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > maxBackoffDoublings {
		attempt = maxBackoffDoublings
	}
	delay := float64(base) * float64(int64(1)<<attempt)

	jitter := (rand.Float64()*2 - 1) * delay * JitterFactor
	return time.Duration(delay + jitter)
}
