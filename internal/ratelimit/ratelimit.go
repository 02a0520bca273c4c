// Package ratelimit provides the token bucket that paces outgoing
// commands. One bucket is shared by everything that talks to the arena, so
// a burst of planning output never turns into a burst on the wire.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Bucket is a mutex-guarded token bucket. Tokens refill continuously at a
// fixed per-second rate up to the burst capacity.
type Bucket struct {
	mu       sync.Mutex
	rate     float64
	capacity float64
	tokens   float64
	last     time.Time
	now      func() time.Time
}

// NewBucket returns a full bucket refilling at ratePerSec with the given
// burst capacity. Non-positive arguments are clamped to 1.
func NewBucket(ratePerSec float64, burst int) *Bucket {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	if burst < 1 {
		burst = 1
	}
	b := &Bucket{
		rate:     ratePerSec,
		capacity: float64(burst),
		tokens:   float64(burst),
		now:      time.Now,
	}
	b.last = b.now()
	return b
}

// Allow consumes one token if available.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// WaitTime reports how long until a token becomes available. It consumes
// nothing; zero means a call to Allow would succeed right now.
func (b *Bucket) WaitTime() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	if b.tokens >= 1 {
		return 0
	}
	need := 1 - b.tokens
	return time.Duration(need / b.rate * float64(time.Second))
}

// Wait blocks until a token is consumed or the context ends.
func (b *Bucket) Wait(ctx context.Context) error {
	for {
		if b.Allow() {
			return nil
		}
		d := b.WaitTime()
		if d <= 0 {
			continue
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill is called with the lock held.
func (b *Bucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.last = now
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
}
