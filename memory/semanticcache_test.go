package memory

import (
	"context"
	"testing"
	"time"
)

// TestSemanticCache_HitThenExpiry checks that with cache threshold
// 0.98 and TTL 3600s, addToCache for one query followed by
// checkSemanticCache for a near-identical query (cosine similarity >=
// 0.98) returns the cached response; after 3700 simulated seconds it
// returns absent.
func TestSemanticCache_HitThenExpiry(t *testing.T) {
	idx := NewIndex(NewInMemoryVectorIndex())
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	idx.now = func() time.Time { return clock }

	opts := CacheOptions{CacheThreshold: 0.98, TTLSec: 3600}
	_, err := idx.AddToCache(ctx, "acme", []float32{1, 0, 0}, "What is the foundation condition?", "It is cracked.", opts)
	if err != nil {
		t.Fatalf("AddToCache: %v", err)
	}

	result, ok, err := idx.CheckSemanticCache(ctx, "acme", []float32{0.999, 0.001, 0}, opts)
	if err != nil {
		t.Fatalf("CheckSemanticCache: %v", err)
	}
	if !ok {
		t.Fatalf("expected a cache hit")
	}
	if result.Response != "It is cracked." {
		t.Fatalf("unexpected response: %v", result.Response)
	}

	clock = clock.Add(3700 * time.Second)
	_, ok, err = idx.CheckSemanticCache(ctx, "acme", []float32{0.999, 0.001, 0}, opts)
	if err != nil {
		t.Fatalf("CheckSemanticCache after expiry: %v", err)
	}
	if ok {
		t.Fatalf("expected absent after TTL expiry")
	}
}

func TestSemanticCache_BelowThresholdMisses(t *testing.T) {
	idx := NewIndex(NewInMemoryVectorIndex())
	ctx := context.Background()
	opts := CacheOptions{CacheThreshold: 0.98, TTLSec: 3600}

	_, err := idx.AddToCache(ctx, "acme", []float32{1, 0, 0}, "unrelated query", "resp", opts)
	if err != nil {
		t.Fatalf("AddToCache: %v", err)
	}

	_, ok, err := idx.CheckSemanticCache(ctx, "acme", []float32{0, 1, 0}, opts)
	if err != nil {
		t.Fatalf("CheckSemanticCache: %v", err)
	}
	if ok {
		t.Fatalf("expected no hit for dissimilar embedding")
	}
}
