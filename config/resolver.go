package config

import (
	"context"
	"sync"
	"time"

	"github.com/loomrun/loom/errs"
	"github.com/loomrun/loom/keypath"
)

// Resolver is the full Config Resolver contract.
type Resolver interface {
	Get(ctx context.Context, path string) (interface{}, bool, error)
	GetWithContext(ctx context.Context, key string, kctx keypath.Context) (interface{}, bool, error)
	GetAll(ctx context.Context, prefix string) ([]Record, error)
	Set(ctx context.Context, path string, value interface{}) error
	Delete(ctx context.Context, path string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	OnChange(l Listener) (unsubscribe func())
	GetConfig(ctx context.Context, key string, kctx keypath.Context) (interface{}, error)
	TryGetConfig(ctx context.Context, key string, kctx keypath.Context) (interface{}, bool, error)
}

// LayeredResolver is the read-through-cache, write-through-persist
// implementation: a CacheStore for fast paths composed with a
// PersistStore for durable truth.
type LayeredResolver struct {
	cache    CacheStore // may be nil: cache layer is optional
	persist  PersistStore
	cacheTTL time.Duration

	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
}

func NewLayeredResolver(cache CacheStore, persist PersistStore, cacheTTL time.Duration) *LayeredResolver {
	return &LayeredResolver{
		cache:     cache,
		persist:   persist,
		cacheTTL:  cacheTTL,
		listeners: make(map[int]Listener),
	}
}

// Get returns the persisted value at path or (_, false, nil) if absent;
// it never synthesizes a value. When the cache layer has a fresh entry,
// it is authoritative; otherwise the persist layer is consulted and the
// cache is refreshed on a hit.
func (r *LayeredResolver) Get(ctx context.Context, path string) (interface{}, bool, error) {
	if r.cache != nil {
		if rec, ok, err := r.cache.Get(ctx, path); err == nil && ok {
			if time.Since(rec.UpdatedAt) <= r.cacheTTL || rec.UpdatedAt.IsZero() {
				return rec.Value, true, nil
			}
		}
	}
	rec, ok, err := r.persist.Get(ctx, path)
	if err != nil || !ok {
		return nil, false, err
	}
	if r.cache != nil {
		_ = r.cache.Set(ctx, path, *rec, r.cacheTTL)
	}
	return rec.Value, true, nil
}

// GetWithContext tries every fallback path for key in priority order
// and returns the first resolved value.
func (r *LayeredResolver) GetWithContext(ctx context.Context, key string, kctx keypath.Context) (interface{}, bool, error) {
	for _, path := range keypath.FallbackPaths(key, kctx) {
		val, ok, err := r.Get(ctx, path)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return val, true, nil
		}
	}
	return nil, false, nil
}

// GetAll always goes to the persist layer; the cache may be partial.
func (r *LayeredResolver) GetAll(ctx context.Context, prefix string) ([]Record, error) {
	return r.persist.GetAll(ctx, prefix)
}

func (r *LayeredResolver) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	return r.persist.ListKeys(ctx, prefix)
}

func (r *LayeredResolver) Set(ctx context.Context, path string, value interface{}) error {
	if err := keypath.Validate(path); err != nil {
		return err
	}
	if err := r.persist.Set(ctx, path, value); err != nil {
		return err
	}
	if r.cache != nil {
		_ = r.cache.Set(ctx, path, Record{Path: path, Value: value, UpdatedAt: time.Now()}, r.cacheTTL)
	}
	r.notify(ChangeEvent{Path: path, Value: value})
	return nil
}

func (r *LayeredResolver) Delete(ctx context.Context, path string) error {
	if err := r.persist.Delete(ctx, path); err != nil {
		return err
	}
	if r.cache != nil {
		_ = r.cache.Delete(ctx, path)
	}
	r.notify(ChangeEvent{Path: path, Deleted: true})
	return nil
}

// OnChange registers a synchronous listener invoked after every
// successful set/delete. A listener panic is recovered and does not
// block delivery to the remaining listeners.
func (r *LayeredResolver) OnChange(l Listener) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = l
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

func (r *LayeredResolver) notify(evt ChangeEvent) {
	r.mu.Lock()
	ls := make([]Listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		ls = append(ls, l)
	}
	r.mu.Unlock()

	for _, l := range ls {
		func() {
			defer func() { recover() }()
			l(evt)
		}()
	}
}

// GetConfig fetches required configuration, returning ConfigMissing
// (carrying every path tried) if no fallback resolves.
func (r *LayeredResolver) GetConfig(ctx context.Context, key string, kctx keypath.Context) (interface{}, error) {
	paths := keypath.FallbackPaths(key, kctx)
	for _, path := range paths {
		val, ok, err := r.Get(ctx, path)
		if err != nil {
			return nil, err
		}
		if ok {
			return val, nil
		}
	}
	return nil, errs.ConfigMissing(key, paths)
}

// TryGetConfig fetches optional configuration, returning (_, false, nil)
// silently if no fallback resolves.
func (r *LayeredResolver) TryGetConfig(ctx context.Context, key string, kctx keypath.Context) (interface{}, bool, error) {
	return r.GetWithContext(ctx, key, kctx)
}

var _ Resolver = (*LayeredResolver)(nil)
