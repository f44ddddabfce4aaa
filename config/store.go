package config

import (
	"context"
	"time"
)

// CacheStore is the fast, TTL-bound layer consulted before the persist
// layer: when a cache layer is configured and its entry's timestamp is
// within cacheTTL, the cache is authoritative.
type CacheStore interface {
	Get(ctx context.Context, path string) (*Record, bool, error)
	Set(ctx context.Context, path string, rec Record, ttl time.Duration) error
	Delete(ctx context.Context, path string) error
}

// PersistStore is the durable system of record. get/getAll/listKeys
// always resolve against it; set/delete write through it first.
type PersistStore interface {
	Get(ctx context.Context, path string) (*Record, bool, error)
	Set(ctx context.Context, path string, value interface{}) error
	Delete(ctx context.Context, path string) error
	// GetAll returns every stored record whose path has the given
	// prefix.
	GetAll(ctx context.Context, prefix string) ([]Record, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}
