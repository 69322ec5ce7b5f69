package broadcast

import (
	"math/rand"
	"time"
)

// Backoff computes jittered exponential reconnect delays. The transport does
// not reconnect on its own; callers that want automatic re-join drive one of
// these between attempts.
type Backoff struct {
	Base    time.Duration
	Max     time.Duration
	attempt int
}

func NewBackoff() *Backoff {
	return &Backoff{
		Base: 100 * time.Millisecond,
		Max:  5 * time.Second,
	}
}

// Next returns the delay before the next attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	d := b.Base << b.attempt
	if d > b.Max || d <= 0 {
		d = b.Max
	}
	if b.attempt < 16 {
		b.attempt++
	}
	// Full jitter: anywhere in (0, d].
	return time.Duration(rand.Int63n(int64(d))) + time.Millisecond
}

// Reset restarts the sequence after a successful attempt.
func (b *Backoff) Reset() {
	b.attempt = 0
}
