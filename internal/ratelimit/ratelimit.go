// Package ratelimit provides the token bucket used to bound per-connection
// signaling message rates.
package ratelimit

import (
	"sync"
	"time"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Bucket is a token bucket refilling at rate tokens/sec up to capacity.
// Token counts are tracked in nanoseconds of refill time to avoid float
// rounding drift.
type Bucket struct {
	mu sync.Mutex

	clock    Clock
	rate     int64 // tokens per second
	capacity int64 // tokens

	availableNanos int64 // 1 token == 1e9 nanos of refill
	last           time.Time
}

const nanosPerToken = int64(time.Second)

func NewBucket(clock Clock, rate, capacity int64) *Bucket {
	if clock == nil {
		clock = RealClock{}
	}
	if rate < 0 {
		rate = 0
	}
	if capacity < 0 {
		capacity = 0
	}
	return &Bucket{
		clock:          clock,
		rate:           rate,
		capacity:       capacity,
		availableNanos: capacity * nanosPerToken,
		last:           clock.Now(),
	}
}

// Allow consumes one token if available.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.availableNanos < nanosPerToken {
		return false
	}
	b.availableNanos -= nanosPerToken
	return true
}

func (b *Bucket) refillLocked() {
	now := b.clock.Now()
	if !now.After(b.last) {
		// Clock did not advance (or went backwards); just move the reference.
		b.last = now
		return
	}
	elapsed := now.Sub(b.last).Nanoseconds()
	b.last = now

	if b.rate <= 0 || b.capacity <= 0 {
		return
	}

	max := b.capacity * nanosPerToken
	// rate tokens/sec == rate nanos of token per nano of wall time.
	if elapsed >= (max-b.availableNanos)/b.rate+1 {
		b.availableNanos = max
		return
	}
	b.availableNanos += elapsed * b.rate
	if b.availableNanos > max {
		b.availableNanos = max
	}
}
