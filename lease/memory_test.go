package lease

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryLease_MutualExclusion(t *testing.T) {
	l := NewInMemoryLease()
	ctx := context.Background()

	id1, ok, err := l.Acquire(ctx, "actor-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected first acquire to succeed: ok=%v err=%v", ok, err)
	}

	_, ok, err = l.Acquire(ctx, "actor-1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected second acquire to fail while held")
	}

	if err := l.Release(ctx, id1); err != nil {
		t.Fatalf("release: %v", err)
	}

	_, ok, err = l.Acquire(ctx, "actor-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("expected acquire after release to succeed: ok=%v err=%v", ok, err)
	}
}

func TestInMemoryLease_RenewExtendsExpiry(t *testing.T) {
	l := NewInMemoryLease()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	id, ok, err := l.Acquire(ctx, "actor-1", 10*time.Second)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	clock = clock.Add(5 * time.Second)
	if err := l.Renew(ctx, id, 10*time.Second); err != nil {
		t.Fatalf("renew: %v", err)
	}

	clock = clock.Add(8 * time.Second) // would have expired without renew
	_, ok, err = l.Acquire(ctx, "actor-1", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected lease still held after renew")
	}
}

func TestInMemoryLease_RenewAfterExpiryFails(t *testing.T) {
	l := NewInMemoryLease()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	ctx := context.Background()

	id, _, _ := l.Acquire(ctx, "actor-1", time.Second)
	clock = clock.Add(2 * time.Second)

	if _, ok, _ := l.Acquire(ctx, "actor-1", time.Second); !ok {
		t.Fatalf("expected new acquire to succeed after expiry")
	}
	if err := l.Renew(ctx, id, time.Second); err == nil {
		t.Fatalf("expected renew of superseded lease to fail")
	}
}
