package actor

import (
	"context"
	"time"
)

// StatePort persists and loads actor records.
type StatePort interface {
	Load(ctx context.Context, id Identity) (*Record, bool, error)
	Save(ctx context.Context, id Identity, rec Record) error
	Keys(ctx context.Context, tenantID, actorType string) ([]string, error)
}

// ActivityPort executes a named, versioned activity and returns its
// output. The dispatcher wraps every call in a timeout
// and a circuit breaker keyed by actorType; Core itself performs
// neither.
type ActivityPort interface {
	Execute(ctx context.Context, actorType, version string, input interface{}) (interface{}, error)
}

// LeasePort grants per-resource mutual exclusion using a fencing-token
// lease, keyed on an arbitrary resource key (here, one actor identity
// per lease).
type LeasePort interface {
	Acquire(ctx context.Context, resource string, ttl time.Duration) (leaseID string, ok bool, err error)
	Renew(ctx context.Context, leaseID string, ttl time.Duration) error
	Release(ctx context.Context, leaseID string) error
}

// EmbeddingPort turns text into a vector for memory operations. Left
// to the caller/runtime: the Memory Index never embeds text itself,
// only stores and compares vectors.
type EmbeddingPort interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChildSpawner publishes a spawn request for a new actor of childType
// and returns its assigned id spawnChild. The runtime
// supplies this, typically backed by queue.Port.
type ChildSpawner interface {
	Spawn(ctx context.Context, parent Identity, childType string, input interface{}) (childActorID string, err error)
}

// EventWaiter parks the caller until an external event named eventName
// arrives for id, or timeout elapses waitForEvent. The
// runtime supplies this, routing trigger-adapter events to whichever
// actor invocation is currently suspended awaiting them.
type EventWaiter interface {
	Await(ctx context.Context, id Identity, eventName string, timeout time.Duration) (interface{}, error)
}
