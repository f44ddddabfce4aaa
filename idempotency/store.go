// Package idempotency implements the dispatcher's idempotency store: a
// hit short-circuits a redelivered message, replaying its stored
// result instead of re-running the handler.
//
// Backend is a thin Get/Set string-pair interface with an in-memory
// sync.Map fallback, keyed on the (tenantId, actorId, idempotencyKey)
// composite.
package idempotency

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Result is the stored outcome of one successfully completed
// invocation, replayed verbatim on a redelivery hit.
type Result struct {
	Output         interface{} `json:"output"`
	InvocationID   string      `json:"invocation_id"`
	CompletedAt    time.Time   `json:"completed_at"`
}

// Backend is the durable key/value pair an idempotency Store persists
// through; RedisStore from the config package satisfies a string-typed
// analogue of this shape via Set/Get, so Store below talks to the
// underlying client directly rather than re-wrapping config.CacheStore
// (whose value type is config.Record, not a raw string).
type Backend interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// Store answers idempotency checks, falling back to an in-process map
// when backend is nil (single-node/dev deployments).
type Store struct {
	backend Backend
	ttl     time.Duration
	cache   sync.Map
}

type entry struct {
	Result    Result
	StoredAt  time.Time
}

// NewStore builds a Store. ttl bounds how long a result is replayed
// before a redelivery is treated as a fresh invocation; operator
// tunable, defaulting to 24h.
func NewStore(backend Backend, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{backend: backend, ttl: ttl}
}

func Key(tenantID, actorID, idempotencyKey string) string {
	return "loom:idem:" + tenantID + ":" + actorID + ":" + idempotencyKey
}

// Get returns the stored Result for key, or ok=false on a miss.
func (s *Store) Get(ctx context.Context, tenantID, actorID, idempotencyKey string) (Result, bool) {
	key := Key(tenantID, actorID, idempotencyKey)

	if s.backend != nil {
		val, err := s.backend.Get(ctx, key)
		if err != nil {
			log.Printf("idempotency: backend get failed for %s: %v", key, err)
			return Result{}, false
		}
		if val == "" {
			return Result{}, false
		}
		var e entry
		if err := json.Unmarshal([]byte(val), &e); err != nil {
			log.Printf("idempotency: corrupt entry for %s: %v", key, err)
			return Result{}, false
		}
		return e.Result, true
	}

	val, ok := s.cache.Load(key)
	if !ok {
		return Result{}, false
	}
	e := val.(entry)
	if time.Since(e.StoredAt) > s.ttl {
		s.cache.Delete(key)
		return Result{}, false
	}
	return e.Result, true
}

// Set records result as the outcome for (tenantID, actorID, idempotencyKey).
func (s *Store) Set(ctx context.Context, tenantID, actorID, idempotencyKey string, result Result) {
	key := Key(tenantID, actorID, idempotencyKey)
	e := entry{Result: result, StoredAt: time.Now()}

	if s.backend != nil {
		data, err := json.Marshal(e)
		if err != nil {
			log.Printf("idempotency: marshal failed for %s: %v", key, err)
			return
		}
		if err := s.backend.Set(ctx, key, string(data), s.ttl); err != nil {
			log.Printf("idempotency: backend set failed for %s: %v", key, err)
		}
		return
	}

	s.cache.Store(key, e)
}
