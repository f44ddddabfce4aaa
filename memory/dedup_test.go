package memory

import (
	"context"
	"testing"
)

// TestDedupMerge checks that with dedup threshold 0.95 and two items
// whose embeddings have cosine similarity >= 0.95 under the same
// (tenantId, threadId), the first add returns id X, the second returns
// X with occurrences == 2 and concatenated text.
func TestDedupMerge(t *testing.T) {
	idx := NewIndex(NewInMemoryVectorIndex())
	ctx := context.Background()
	opts := AddOptions{Dedup: true, DedupThreshold: 0.95}

	id1, err := idx.Add(ctx, Item{
		TenantID: "acme", ThreadID: "t1", Text: "the foundation is cracked",
		Content: "the foundation is cracked", Embedding: []float32{1, 0, 0},
	}, opts)
	if err != nil {
		t.Fatalf("first add: %v", err)
	}

	id2, err := idx.Add(ctx, Item{
		TenantID: "acme", ThreadID: "t1", Text: " and leaking",
		Content: "and leaking", Embedding: []float32{0.99, 0.01, 0},
	}, opts)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if id2 != id1 {
		t.Fatalf("expected merge into id %q, got %q", id1, id2)
	}

	stored, ok, err := idx.Get(ctx, id1, "acme", "t1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if stored.Text != "the foundation is cracked and leaking" {
		t.Fatalf("unexpected merged text: %q", stored.Text)
	}
	if occurrences(stored.Metadata["occurrences"]) != 2 {
		t.Fatalf("expected occurrences=2, got %v", stored.Metadata["occurrences"])
	}
}

func TestDedup_DissimilarInsertsSeparately(t *testing.T) {
	idx := NewIndex(NewInMemoryVectorIndex())
	ctx := context.Background()
	opts := AddOptions{Dedup: true, DedupThreshold: 0.95}

	id1, err := idx.Add(ctx, Item{
		TenantID: "acme", ThreadID: "t1", Content: "a", Embedding: []float32{1, 0, 0},
	}, opts)
	if err != nil {
		t.Fatalf("add 1: %v", err)
	}
	id2, err := idx.Add(ctx, Item{
		TenantID: "acme", ThreadID: "t1", Content: "b", Embedding: []float32{0, 1, 0},
	}, opts)
	if err != nil {
		t.Fatalf("add 2: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected distinct ids for dissimilar embeddings")
	}
}
