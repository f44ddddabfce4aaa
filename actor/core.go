package actor

import (
	"context"
	"log"
	"time"

	"github.com/loomrun/loom/config"
	"github.com/loomrun/loom/journal"
	"github.com/loomrun/loom/keypath"
	"github.com/loomrun/loom/memory"
	"github.com/loomrun/loom/state"
)

// Handler is the unit of user-supplied business logic invoked once per
// message's execute(input) contract.
type Handler func(ctx context.Context, c *Core, input interface{}) (interface{}, error)

// Core is the per-invocation handler context: the single object a
// Handler is given, exposing the actor's materialized state, its
// suspension points, and its configuration/memory collaborators. One
// Core is constructed per dispatcher invocation and discarded after
// persist; it holds no goroutines of its own.
//
// Grounded on other_examples/2c65974f_teradata-labs-loom
// (pkg/agent/types.go)'s Agent struct shape: a fixed set of injected
// collaborators (memory, config, activity execution) assembled once
// and exposed through narrow methods rather than field access.
type Core struct {
	Identity Identity

	state   *state.Manager
	journal *journal.Journal

	activities ActivityPort
	spawner    ChildSpawner
	events     EventWaiter
	resolver   config.Resolver
	memIndex   *memory.Index

	now func() time.Time
}

// NewCore assembles a Core for one invocation. activities, spawner,
// events, resolver, and memIndex may be nil; the corresponding methods
// then either no-op (memory) or return a permanent error (activities,
// spawner, events, resolver) explaining what was never configured.
func NewCore(id Identity, mgr *state.Manager, jrnl *journal.Journal, activities ActivityPort, spawner ChildSpawner, events EventWaiter, resolver config.Resolver, memIndex *memory.Index) *Core {
	return &Core{
		Identity:   id,
		state:      mgr,
		journal:    jrnl,
		activities: activities,
		spawner:    spawner,
		events:     events,
		resolver:   resolver,
		memIndex:   memIndex,
		now:        time.Now,
	}
}

// State returns the current materialized state. Callers must treat it
// as read-only; mutate only via UpdateState.
func (c *Core) State() state.Value {
	return c.state.Current()
}

// UpdateState runs recipe against a draft of the current state and
// records the resulting forward/inverse patch pair in the journal
// atomically.
func (c *Core) UpdateState(recipe state.Recipe) error {
	forward, inverse, err := c.state.UpdateState(recipe)
	if err != nil {
		return err
	}
	c.journal.RecordStatePatches(forward, inverse, c.now())
	return nil
}

// CallActivity invokes a named, versioned activity synchronously and
// suspends the logical invocation around it: an ActivityScheduled
// marker is recorded before the call and an ActivityCompleted marker
// (acking the scheduled one) after it returns, so replay never
// re-invokes an activity whose result was already durably recorded
// (resolved here: markers, not goroutine
// parking, carry suspension across a crash).
func (c *Core) CallActivity(ctx context.Context, actorType, version string, input interface{}) (interface{}, error) {
	if c.activities == nil {
		return nil, errNotConfigured("activity execution", c.Identity)
	}
	scheduled := c.journal.RecordMarker(journal.MarkerActivityScheduled, map[string]interface{}{
		"actor_type": actorType,
		"version":    version,
		"input":      input,
	}, c.now())

	output, err := c.activities.Execute(ctx, actorType, version, input)
	if err != nil {
		return nil, err
	}

	c.journal.RecordMarker(journal.MarkerActivityCompleted, map[string]interface{}{
		"output": output,
	}, c.now())
	c.journal.AckMarker(scheduled.Index)
	return output, nil
}

// SpawnChild requests a new actor of childType and returns its
// assigned id. A SpawnChild marker is recorded before the request and
// acked after it succeeds, so a replay re-drives only a spawn whose
// marker was never acked. The spawner is given no key derived from the
// marker; guarding against a duplicate child is left to the spawner.
func (c *Core) SpawnChild(ctx context.Context, childType string, input interface{}) (string, error) {
	if c.spawner == nil {
		return "", errNotConfigured("child spawning", c.Identity)
	}
	marker := c.journal.RecordMarker(journal.MarkerSpawnChild, map[string]interface{}{
		"child_type": childType,
		"input":      input,
	}, c.now())

	childID, err := c.spawner.Spawn(ctx, c.Identity, childType, input)
	if err != nil {
		return "", err
	}
	c.journal.AckMarker(marker.Index)
	return childID, nil
}

// WaitForEvent suspends the invocation until an external event named
// eventName arrives for this actor, or timeout elapses. An
// EventAwaited marker precedes the wait and an EventReceived marker
// (acking it) follows a successful receipt.
func (c *Core) WaitForEvent(ctx context.Context, eventName string, timeout time.Duration) (interface{}, error) {
	if c.events == nil {
		return nil, errNotConfigured("event waiting", c.Identity)
	}
	awaited := c.journal.RecordMarker(journal.MarkerEventAwaited, map[string]interface{}{
		"event_name": eventName,
	}, c.now())

	payload, err := c.events.Await(ctx, c.Identity, eventName, timeout)
	if err != nil {
		return nil, err
	}

	c.journal.RecordMarker(journal.MarkerEventReceived, map[string]interface{}{
		"event_name": eventName,
		"payload":    payload,
	}, c.now())
	c.journal.AckMarker(awaited.Index)
	return payload, nil
}

// GetConfig fetches required configuration for key under this actor's
// tenant/actor context. It returns
// errs.ConfigMissing (via the Resolver) if no fallback path resolves.
func (c *Core) GetConfig(ctx context.Context, key string) (interface{}, error) {
	if c.resolver == nil {
		return nil, errNotConfigured("config resolution", c.Identity)
	}
	return c.resolver.GetConfig(ctx, key, c.keypathContext())
}

// TryGetConfig fetches optional configuration, returning (_, false,
// nil) silently when unresolved or when no Resolver was configured.
func (c *Core) TryGetConfig(ctx context.Context, key string) (interface{}, bool, error) {
	if c.resolver == nil {
		return nil, false, nil
	}
	return c.resolver.TryGetConfig(ctx, key, c.keypathContext())
}

func (c *Core) keypathContext() keypath.Context {
	return keypath.Context{TenantID: c.Identity.TenantID, ActorID: c.Identity.ActorID}
}

// Remember stores item in the actor's memory index, deduplicating
// against near-identical prior items when opts.Dedup is set. A memory
// backend is optional: with none configured this is a silent no-op,
// and any backend error is logged and swallowed rather than propagated
// to the handler.
func (c *Core) Remember(ctx context.Context, item memory.Item, opts memory.AddOptions) string {
	if c.memIndex == nil {
		return ""
	}
	item.TenantID = c.Identity.TenantID
	id, err := c.memIndex.Add(ctx, item, opts)
	if err != nil {
		log.Printf("actor: memory add failed for %s: %v", c.Identity, err)
		return ""
	}
	return id
}

// Recall returns the most recent memories for threadID, or nil if no
// memory backend is configured or the lookup fails.
func (c *Core) Recall(ctx context.Context, threadID string, limit int) []memory.Item {
	if c.memIndex == nil {
		return nil
	}
	items, err := c.memIndex.GetRecentMemories(ctx, c.Identity.TenantID, threadID, limit)
	if err != nil {
		log.Printf("actor: memory recall failed for %s: %v", c.Identity, err)
		return nil
	}
	return items
}

// CheckCache looks up a semantic-cache hit for queryEmbedding. ok is
// false whenever no memory backend is configured, no hit is found, or
// the lookup errors.
func (c *Core) CheckCache(ctx context.Context, queryEmbedding []float32, opts memory.CacheOptions) (result *memory.CacheResult, ok bool) {
	if c.memIndex == nil {
		return nil, false
	}
	result, ok, err := c.memIndex.CheckSemanticCache(ctx, c.Identity.TenantID, queryEmbedding, opts)
	if err != nil {
		log.Printf("actor: semantic cache check failed for %s: %v", c.Identity, err)
		return nil, false
	}
	return result, ok
}

// AddToCache stores a query/response pair for future semantic-cache
// hits. It is a silent no-op without a configured memory backend.
func (c *Core) AddToCache(ctx context.Context, queryEmbedding []float32, query string, response interface{}, opts memory.CacheOptions) {
	if c.memIndex == nil {
		return
	}
	if _, err := c.memIndex.AddToCache(ctx, c.Identity.TenantID, queryEmbedding, query, response, opts); err != nil {
		log.Printf("actor: add to semantic cache failed for %s: %v", c.Identity, err)
	}
}
