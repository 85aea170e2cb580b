// Package backoff computes jittered exponential delays for the poller's
// optional failure backoff.
package backoff

import (
	"math/rand"
	"time"
)

type Backoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// Jitter is the +/- fraction applied to each interval (0.1 = ±10%).
	Jitter          float64
	currentInterval time.Duration
}

func New(initial, max time.Duration, multiplier float64) *Backoff {
	if multiplier < 1 {
		multiplier = 1
	}
	return &Backoff{
		InitialInterval: initial,
		MaxInterval:     max,
		Multiplier:      multiplier,
		Jitter:          0.1,
	}
}

// Next returns the next backoff duration
func (b *Backoff) Next() time.Duration {
	if b.currentInterval == 0 {
		b.currentInterval = b.InitialInterval
	} else {
		b.currentInterval = time.Duration(float64(b.currentInterval) * b.Multiplier)
	}
	if b.MaxInterval > 0 && b.currentInterval > b.MaxInterval {
		b.currentInterval = b.MaxInterval
	}
	if b.Jitter <= 0 {
		return b.currentInterval
	}
	span := b.Jitter * float64(b.currentInterval)
	jitter := time.Duration(rand.Float64()*2*span - span)
	return b.currentInterval + jitter
}

// Current returns the last un-jittered interval, zero after Reset.
func (b *Backoff) Current() time.Duration {
	return b.currentInterval
}

// Reset resets the backoff to initial state
func (b *Backoff) Reset() {
	b.currentInterval = 0
}
