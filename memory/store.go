package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Index is the Semantic Memory Index, composing a VectorIndex backend
// with dedup-on-insert and semantic-cache behavior. The get-or-merge
// shape on Add generalizes a Get-then-Set idiom from an exact-key
// lookup to an embedding-distance lookup.
type Index struct {
	backend VectorIndex
	now     func() time.Time
}

func NewIndex(backend VectorIndex) *Index {
	return &Index{backend: backend, now: time.Now}
}

// Add inserts item, applying dedup-on-insert merge when opts.Dedup is
// set: if a similar item already exists under the same
// (tenantId, threadId, category), its text is extended and
// metadata.occurrences incremented rather than inserting a duplicate.
func (idx *Index) Add(ctx context.Context, item Item, opts AddOptions) (string, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = idx.now()
	}
	if item.Metadata == nil {
		item.Metadata = make(map[string]interface{})
	}
	item.Metadata["hash"] = ContentHash(item.Content)

	if opts.Dedup && len(item.Embedding) > 0 {
		hits, err := idx.backend.FindSimilar(ctx, item.Embedding, opts.DedupThreshold, SearchFilters{
			TenantID: item.TenantID,
			ThreadID: item.ThreadID,
			Category: item.Category,
		})
		if err != nil {
			return "", err
		}
		if len(hits) > 0 {
			existing := hits[0].Item
			existing.Text = existing.Text + item.Text
			occ := occurrences(existing.Metadata["occurrences"])
			if occ == 0 {
				occ = 1
			}
			existing.Metadata["occurrences"] = occ + 1
			existing.Metadata["lastUpdated"] = idx.now()
			if err := idx.backend.Update(ctx, existing); err != nil {
				return "", err
			}
			return existing.ID, nil
		}
		item.Metadata["occurrences"] = 1
	}

	if err := idx.backend.Insert(ctx, item); err != nil {
		return "", err
	}
	return item.ID, nil
}

func (idx *Index) Get(ctx context.Context, id, tenantID, threadID string) (*Item, bool, error) {
	return idx.backend.Get(ctx, id, tenantID, threadID)
}

func (idx *Index) Update(ctx context.Context, item Item) error {
	return idx.backend.Update(ctx, item)
}

func (idx *Index) Delete(ctx context.Context, id, tenantID, threadID string) error {
	return idx.backend.Delete(ctx, id, tenantID, threadID)
}

// Search is a thin alias over FindSimilar: threshold is the minimum
// similarity and opts supplies the result-set filter. embedding is
// already a vector; text-to-embedding is the caller's EmbeddingPort
// concern.
func (idx *Index) Search(ctx context.Context, embedding []float32, threshold float64, opts SearchOptions) ([]Scored, error) {
	hits, err := idx.backend.FindSimilar(ctx, embedding, threshold, SearchFilters{
		TenantID: opts.TenantID,
		ThreadID: opts.ThreadID,
		Category: opts.Category,
	})
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}

func (idx *Index) FindSimilar(ctx context.Context, embedding []float32, threshold float64, filters SearchFilters) ([]Scored, error) {
	return idx.backend.FindSimilar(ctx, embedding, threshold, filters)
}

// CheckSemanticCache looks up the nearest semantic-cache item within
// cacheThreshold of queryEmbedding. A hit older than opts.MaxAge (when
// set) is treated as absent.
func (idx *Index) CheckSemanticCache(ctx context.Context, tenantID string, queryEmbedding []float32, opts CacheOptions) (*CacheResult, bool, error) {
	hits, err := idx.backend.FindSimilar(ctx, queryEmbedding, opts.CacheThreshold, SearchFilters{
		TenantID: tenantID,
		Kind:     KindSemanticCache,
	})
	if err != nil {
		return nil, false, err
	}
	if len(hits) == 0 {
		return nil, false, nil
	}
	best := hits[0].Item
	age := idx.now().Sub(best.Timestamp)
	if opts.MaxAge > 0 && age > opts.MaxAge {
		return nil, false, nil
	}
	if best.expired(idx.now()) {
		return nil, false, nil
	}
	return &CacheResult{Response: best.Metadata["response"], Age: age, Metadata: best.Metadata}, true, nil
}

// AddToCache inserts a new semantic-cache item for query/response,
// partitioned by a stable hash of the query (never merged with an
// existing cache entry).
func (idx *Index) AddToCache(ctx context.Context, tenantID string, queryEmbedding []float32, query string, response interface{}, opts CacheOptions) (string, error) {
	threadID := StableHash(query)
	item := Item{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		ThreadID:  threadID,
		Content:   query,
		Embedding: queryEmbedding,
		Timestamp: idx.now(),
		Kind:      KindSemanticCache,
		TTLSec:    opts.TTLSec,
		Metadata: map[string]interface{}{
			"hash":     ContentHash(query),
			"response": response,
		},
	}
	if err := idx.backend.Insert(ctx, item); err != nil {
		return "", err
	}
	return item.ID, nil
}

// GetRecentMemories returns the most recent items for tenantID/threadID.
func (idx *Index) GetRecentMemories(ctx context.Context, tenantID, threadID string, limit int) ([]Item, error) {
	return idx.backend.Recent(ctx, tenantID, threadID, limit)
}

// occurrences normalizes metadata's occurrences field, which may come
// back as int (set directly) or float64 (after a JSON round trip
// through a Redis-backed VectorIndex).
func occurrences(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// StableHash derives the semantic-cache partition key from query, a
// fixed-length prefix of its content hash so cache items for the same
// query land in the same partition across writers.
func StableHash(query string) string {
	full := ContentHash(query)
	if len(full) > 16 {
		return full[:16]
	}
	return full
}
