package ratelimit

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestAllowConsumesAndRefills(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	l := newLimiter(3, 3*time.Second, c.now)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d rejected within budget", i)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("request beyond budget allowed")
	}
	if !l.Allow("10.0.0.2") {
		t.Fatal("other client should have its own bucket")
	}

	c.t = c.t.Add(time.Second)
	if !l.Allow("10.0.0.1") {
		t.Fatal("one token should have refilled after a second")
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("only one token should have refilled")
	}
}

func TestRefillCapsAtLimit(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	l := newLimiter(2, time.Second, c.now)
	l.Allow("a")
	c.t = c.t.Add(time.Hour)
	allowed := 0
	for i := 0; i < 5; i++ {
		if l.Allow("a") {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("allowed = %d, want 2", allowed)
	}
}

func TestEvictAndReset(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	l := newLimiter(1, time.Minute, c.now)
	l.Allow("old")
	c.t = c.t.Add(3 * time.Minute)
	l.Allow("new")
	l.evict()
	if l.Len() != 1 {
		t.Errorf("len = %d, want 1 after eviction", l.Len())
	}
	l.Reset("new")
	if l.Len() != 0 {
		t.Errorf("len = %d, want 0 after reset", l.Len())
	}
}

func TestRetryAfter(t *testing.T) {
	l := newLimiter(120, time.Minute, time.Now)
	if got := l.RetryAfter(); got != 500*time.Millisecond {
		t.Errorf("RetryAfter = %v, want 500ms", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	l := New(10, time.Second)
	l.Stop()
	l.Stop()
}
