package resilience

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_BurstThenThrottle(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)

	ctx := context.Background()
	start := time.Now()
	if err := rl.Acquire(ctx, "tenant-a", 2); err != nil {
		t.Fatalf("burst acquire should not error: %v", err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Fatalf("burst acquire should not wait")
	}

	start = time.Now()
	if err := rl.Acquire(ctx, "tenant-a", 1); err != nil {
		t.Fatalf("throttled acquire should not error: %v", err)
	}
	if time.Since(start) < 400*time.Millisecond {
		t.Fatalf("expected throttled acquire to wait roughly half a second, waited %v", time.Since(start))
	}
}

func TestRateLimiter_PerKeyIsolation(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	if w := rl.Wait("a", 1); w != 0 {
		t.Fatalf("expected key a's first acquire to be free, got wait %v", w)
	}
	rl.Acquire(context.Background(), "a", 1)
	if w := rl.Wait("b", 1); w != 0 {
		t.Fatalf("expected key b to be unaffected by key a's consumption, got wait %v", w)
	}
}
