package actor

import (
	"container/list"
	"context"
	"log"
	"sync"
	"time"
)

// Instance tracks one resident actor's lifecycle status and recency,
// independent of the per-invocation Core built fresh for each message.
// The dispatcher advances Status as it drives an invocation through
// Hydrating -> Executing -> Persisting -> Idle; Registry evicts idle
// instances from memory (the persisted Record is unaffected).
type Instance struct {
	Identity   Identity
	Status     Status
	LastActive time.Time

	elem *list.Element // registry's LRU position; nil when not registered
}

// Registry holds resident actor instances in memory, evicting by idle
// timeout via a ticker-driven background sweep and by an LRU cap on
// total size, enforced synchronously in Touch.
type Registry struct {
	mu         sync.Mutex
	instances  map[string]*Instance
	lru        *list.List // front = most recently touched
	idleAfter  time.Duration
	maxSize    int
	now        func() time.Time
	onEvict    func(Identity)
}

// NewRegistry constructs a Registry. idleAfter is the duration of
// inactivity after which an instance becomes eligible for idle
// eviction; maxSize is the LRU cap (0 means unbounded). onEvict, if
// non-nil, is invoked (outside the registry lock) whenever an instance
// is evicted by the LRU cap or the idle sweep.
func NewRegistry(idleAfter time.Duration, maxSize int, onEvict func(Identity)) *Registry {
	return &Registry{
		instances: make(map[string]*Instance),
		lru:       list.New(),
		idleAfter: idleAfter,
		maxSize:   maxSize,
		now:       time.Now,
		onEvict:   onEvict,
	}
}

// Touch registers id as resident (if not already) and marks it most
// recently used, returning its Instance. If registering id pushes the
// registry past maxSize, the least-recently-used other instance is
// evicted synchronously before Touch returns.
func (r *Registry) Touch(id Identity, status Status) *Instance {
	r.mu.Lock()
	key := id.String()
	inst, ok := r.instances[key]
	if !ok {
		inst = &Instance{Identity: id}
		r.instances[key] = inst
		inst.elem = r.lru.PushFront(inst)
	} else {
		r.lru.MoveToFront(inst.elem)
	}
	inst.Status = status
	inst.LastActive = r.now()

	var evicted []Identity
	if r.maxSize > 0 {
		for len(r.instances) > r.maxSize {
			back := r.lru.Back()
			if back == nil {
				break
			}
			lru := back.Value.(*Instance)
			if lru == inst {
				break
			}
			r.removeLocked(lru)
			evicted = append(evicted, lru.Identity)
		}
	}
	r.mu.Unlock()

	for _, e := range evicted {
		r.fireEvict(e)
	}
	return inst
}

// MarkIdle transitions id to StatusIdle without removing it from the
// registry; it remains eligible for idle sweep.
func (r *Registry) MarkIdle(id Identity) {
	r.mu.Lock()
	if inst, ok := r.instances[id.String()]; ok {
		inst.Status = StatusIdle
		inst.LastActive = r.now()
	}
	r.mu.Unlock()
}

// Remove drops id from the registry immediately (e.g. on explicit
// eviction request), without running onEvict.
func (r *Registry) Remove(id Identity) {
	r.mu.Lock()
	if inst, ok := r.instances[id.String()]; ok {
		r.removeLocked(inst)
	}
	r.mu.Unlock()
}

func (r *Registry) removeLocked(inst *Instance) {
	inst.Status = StatusEvicted
	r.lru.Remove(inst.elem)
	delete(r.instances, inst.Identity.String())
}

func (r *Registry) fireEvict(id Identity) {
	if r.onEvict != nil {
		r.onEvict(id)
	}
}

// Size returns the current resident count.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// StartIdleSweep launches a background goroutine that evicts
// instances idle for longer than idleAfter, every interval, until ctx
// is done.
func (r *Registry) StartIdleSweep(ctx context.Context, interval time.Duration) {
	go r.sweepLoop(ctx, interval)
}

func (r *Registry) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepOnce()
		}
	}
}

func (r *Registry) sweepOnce() {
	if r.idleAfter <= 0 {
		return
	}
	now := r.now()

	r.mu.Lock()
	var stale []Identity
	for _, inst := range r.instances {
		if inst.Status == StatusIdle && now.Sub(inst.LastActive) >= r.idleAfter {
			stale = append(stale, inst.Identity)
		}
	}
	for _, id := range stale {
		if inst, ok := r.instances[id.String()]; ok {
			r.removeLocked(inst)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		log.Printf("actor: evicting idle instance %s", id)
		r.fireEvict(id)
	}
}
