package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisVectorIndex stores each item (including the raw embedding) as
// a JSON string under its own key via a Set/Get/Scan idiom, and delegates
// nearest-neighbor search to the embedding distance computed
// client-side after a Scan over the tenant/thread partition. This is a
// reference implementation only: a real deployment plugs in a
// dedicated vector database through the same VectorIndex port rather
// than scanning Redis for every query.
type RedisVectorIndex struct {
	client *redis.Client
}

func NewRedisVectorIndex(client *redis.Client) *RedisVectorIndex {
	return &RedisVectorIndex{client: client}
}

func itemKey(tenantID, threadID, id string) string {
	return fmt.Sprintf("loom:memory:%s:%s:%s", tenantID, threadID, id)
}

func scanPattern(tenantID, threadID string) string {
	t := threadID
	if t == "" {
		t = "*"
	}
	return fmt.Sprintf("loom:memory:%s:%s:*", tenantID, t)
}

func (x *RedisVectorIndex) Insert(ctx context.Context, item Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	ttl := time.Duration(0)
	if item.TTLSec > 0 {
		ttl = time.Duration(item.TTLSec) * time.Second
	}
	return x.client.Set(ctx, itemKey(item.TenantID, item.ThreadID, item.ID), data, ttl).Err()
}

func (x *RedisVectorIndex) Get(ctx context.Context, id, tenantID, threadID string) (*Item, bool, error) {
	data, err := x.client.Get(ctx, itemKey(tenantID, threadID, id)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, false, err
	}
	return &item, true, nil
}

func (x *RedisVectorIndex) Update(ctx context.Context, item Item) error {
	return x.Insert(ctx, item)
}

func (x *RedisVectorIndex) Delete(ctx context.Context, id, tenantID, threadID string) error {
	return x.client.Del(ctx, itemKey(tenantID, threadID, id)).Err()
}

func (x *RedisVectorIndex) scanItems(ctx context.Context, tenantID, threadID string) ([]Item, error) {
	var items []Item
	iter := x.client.Scan(ctx, 0, scanPattern(tenantID, threadID), 0).Iterator()
	for iter.Next(ctx) {
		data, err := x.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var item Item
		if err := json.Unmarshal(data, &item); err == nil {
			items = append(items, item)
		}
	}
	return items, iter.Err()
}

func (x *RedisVectorIndex) FindSimilar(ctx context.Context, embedding []float32, threshold float64, filters SearchFilters) ([]Scored, error) {
	items, err := x.scanItems(ctx, filters.TenantID, filters.ThreadID)
	if err != nil {
		return nil, err
	}
	var out []Scored
	for _, item := range items {
		if filters.Category != "" && item.Category != filters.Category {
			continue
		}
		if filters.Kind != "" && item.Kind != filters.Kind {
			continue
		}
		if sim := CosineSimilarity(embedding, item.Embedding); sim >= threshold {
			out = append(out, Scored{Item: item, Similarity: sim})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out, nil
}

func (x *RedisVectorIndex) Recent(ctx context.Context, tenantID, threadID string, limit int) ([]Item, error) {
	items, err := x.scanItems(ctx, tenantID, threadID)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Timestamp.After(items[j].Timestamp) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

var _ VectorIndex = (*RedisVectorIndex)(nil)
