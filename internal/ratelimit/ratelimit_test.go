package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestBucket_BurstThenRefill(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := NewBucket(clock, 10, 5)

	for i := 0; i < 5; i++ {
		if !b.Allow() {
			t.Fatalf("burst token %d denied", i)
		}
	}
	if b.Allow() {
		t.Fatal("empty bucket should deny")
	}

	// 10 tokens/sec: 100ms buys exactly one token.
	clock.advance(100 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("refilled token denied")
	}
	if b.Allow() {
		t.Fatal("second token should not exist yet")
	}
}

func TestBucket_RefillClampsAtCapacity(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := NewBucket(clock, 10, 3)

	for i := 0; i < 3; i++ {
		b.Allow()
	}
	clock.advance(time.Hour)

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("token %d denied after long idle", i)
		}
	}
	if b.Allow() {
		t.Fatal("capacity must cap the refill")
	}
}

func TestBucket_ClockGoingBackwards(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := NewBucket(clock, 10, 1)

	if !b.Allow() {
		t.Fatal("first token denied")
	}
	clock.advance(-time.Minute)
	if b.Allow() {
		t.Fatal("no refill when time goes backwards")
	}
	clock.advance(time.Minute + 100*time.Millisecond)
	if !b.Allow() {
		t.Fatal("refill should resume once time moves forward")
	}
}

func TestBucket_ZeroRateNeverRefills(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := NewBucket(clock, 0, 2)

	b.Allow()
	b.Allow()
	clock.advance(time.Hour)
	if b.Allow() {
		t.Fatal("zero-rate bucket must not refill")
	}
}
