package jobs

import (
	"math/rand"
	"time"
)

// Backoff computes exponential retry delays with jitter and a hard cap,
// generalized from a GitHub API retry helper's HTTP-retry-after backoff to
// a job-queue's retry-count backoff: same shape (initial, multiplier, cap),
// driven by retry_count instead of attempt number.
type Backoff struct {
	Initial    time.Duration
	Multiplier float64
	Max        time.Duration
}

// DefaultBackoff is the exponential-with-jitter, capped-at-5-minutes
// schedule used when a caller doesn't supply its own Backoff.
func DefaultBackoff() Backoff {
	return Backoff{Initial: time.Second, Multiplier: 2.0, Max: 5 * time.Minute}
}

func (b Backoff) applyDefaults() Backoff {
	if b.Initial <= 0 {
		b.Initial = time.Second
	}
	if b.Multiplier <= 0 {
		b.Multiplier = 2.0
	}
	if b.Max <= 0 {
		b.Max = 5 * time.Minute
	}
	return b
}

// Delay returns the backoff duration for the given retry count (0 on the
// job's first failure), with up to 20% jitter added so many jobs failing
// at once don't all retry in lockstep.
func (b Backoff) Delay(retryCount int) time.Duration {
	b = b.applyDefaults()
	d := float64(b.Initial)
	for i := 0; i < retryCount; i++ {
		d *= b.Multiplier
		if d > float64(b.Max) {
			d = float64(b.Max)
			break
		}
	}
	jitter := d * 0.2 * rand.Float64()
	total := time.Duration(d + jitter)
	if total > b.Max {
		total = b.Max
	}
	return total
}
