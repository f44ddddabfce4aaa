package actor

import (
	"testing"
	"time"
)

func TestRegistry_LRUEvictsLeastRecentlyUsedOverCap(t *testing.T) {
	var evicted []Identity
	r := NewRegistry(0, 2, func(id Identity) { evicted = append(evicted, id) })

	a := Identity{TenantID: "acme", ActorType: "order", ActorID: "a"}
	b := Identity{TenantID: "acme", ActorType: "order", ActorID: "b"}
	c := Identity{TenantID: "acme", ActorType: "order", ActorID: "c"}

	r.Touch(a, StatusIdle)
	r.Touch(b, StatusIdle)
	r.Touch(c, StatusIdle) // over cap: a should be evicted (least recently touched)

	if r.Size() != 2 {
		t.Fatalf("expected size 2, got %d", r.Size())
	}
	if len(evicted) != 1 || evicted[0] != a {
		t.Fatalf("expected a evicted, got %+v", evicted)
	}
}

func TestRegistry_IdleSweepEvictsStaleInstances(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var evicted []Identity
	r := NewRegistry(time.Minute, 0, func(id Identity) { evicted = append(evicted, id) })
	r.now = func() time.Time { return clock }

	id := Identity{TenantID: "acme", ActorType: "order", ActorID: "a"}
	r.Touch(id, StatusIdle)

	clock = clock.Add(2 * time.Minute)
	r.sweepOnce()

	if r.Size() != 0 {
		t.Fatalf("expected instance evicted, size=%d", r.Size())
	}
	if len(evicted) != 1 || evicted[0] != id {
		t.Fatalf("expected eviction callback for %v, got %+v", id, evicted)
	}
}

func TestRegistry_TouchKeepsExecutingInstanceOutOfIdleSweep(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var evicted []Identity
	r := NewRegistry(time.Minute, 0, func(id Identity) { evicted = append(evicted, id) })
	r.now = func() time.Time { return clock }

	id := Identity{TenantID: "acme", ActorType: "order", ActorID: "a"}
	r.Touch(id, StatusExecuting)

	clock = clock.Add(2 * time.Minute)
	r.sweepOnce()

	if r.Size() != 1 {
		t.Fatalf("expected executing instance to survive sweep, size=%d", r.Size())
	}
	if len(evicted) != 0 {
		t.Fatalf("expected no eviction, got %+v", evicted)
	}
}
