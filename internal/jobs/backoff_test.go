package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	b := Backoff{Initial: time.Second, Multiplier: 2.0, Max: 10 * time.Second}

	d0 := b.Delay(0)
	d5 := b.Delay(5)

	assert.GreaterOrEqual(t, d0, time.Second)
	assert.Less(t, d0, 2*time.Second) // base + up to 20% jitter

	// after enough retries the exponential growth hits the cap
	assert.LessOrEqual(t, d5, 10*time.Second+2*time.Second)
}

func TestDefaultBackoffFillsZeroFields(t *testing.T) {
	b := Backoff{}
	d := b.Delay(0)
	assert.Greater(t, d, time.Duration(0))
}
