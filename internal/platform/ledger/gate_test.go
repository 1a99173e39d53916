package ledger

import (
	"context"
	"testing"
	"time"
)

func TestMemoryGate_AllowsFirstRun(t *testing.T) {
	g := NewMemoryGate(time.Minute)
	if !g.Allow(context.Background()) {
		t.Fatal("a fresh gate must allow the first run")
	}
}

func TestMemoryGate_ThrottlesWithinInterval(t *testing.T) {
	g := NewMemoryGate(time.Minute)
	now := time.Date(2024, time.March, 15, 8, 0, 0, 0, time.UTC)
	g.clock = func() time.Time { return now }

	ctx := context.Background()
	if !g.Allow(ctx) {
		t.Fatal("first run must pass")
	}
	now = now.Add(30 * time.Second)
	if g.Allow(ctx) {
		t.Fatal("run inside the interval must be throttled")
	}
	now = now.Add(31 * time.Second)
	if !g.Allow(ctx) {
		t.Fatal("run past the interval must pass")
	}
}

func TestMemoryGate_ThrottledRunDoesNotExtendInterval(t *testing.T) {
	g := NewMemoryGate(time.Minute)
	now := time.Date(2024, time.March, 15, 8, 0, 0, 0, time.UTC)
	g.clock = func() time.Time { return now }

	ctx := context.Background()
	g.Allow(ctx)
	now = now.Add(45 * time.Second)
	g.Allow(ctx) // throttled
	now = now.Add(16 * time.Second)
	if !g.Allow(ctx) {
		t.Fatal("a denied attempt must not reset the throttle window")
	}
}

func TestMemoryGate_DefaultInterval(t *testing.T) {
	g := NewMemoryGate(0)
	if g.interval != DefaultDigestInterval {
		t.Fatalf("interval = %s, want %s", g.interval, DefaultDigestInterval)
	}
}
