// Package dispatcher implements the Runtime: the 8-step dequeue ->
// lease -> hydrate -> idempotency-check -> record -> execute ->
// persist-or-compensate -> ack/nack protocol that drives every actor
// invocation, combining a queue-consuming worker loop with a per-actor
// lease acquire/renew/release cycle and a replay-on-hit idempotency
// check.
package dispatcher

import (
	"context"
	"time"

	"github.com/loomrun/loom/actor"
	"github.com/loomrun/loom/errs"
)

// Handlers maps actorType to the business-logic Handler registered for
// it. The dispatcher looks up the handler for each message's
// ActorRef.ActorType; an unregistered type is a permanent failure.
type Handlers map[string]actor.Handler

// FailureEvent is published when an invocation exhausts its retry
// budget and the job is moved to dead-letter. Message carries only the
// errs.Error's Message field (documented as already redacted by the
// caller), never the raw Cause, so upstream dependency error text
// never reaches an observer unredacted.
type FailureEvent struct {
	Kind          errs.Kind
	Message       string
	Attempt       int
	ActorRef      string
	CorrelationID string
}

// FailureObserver is notified once per dead-lettered invocation.
// Optional; a nil observer is simply not called.
type FailureObserver func(ctx context.Context, ev FailureEvent)

// Config tunes the dispatcher's queue, lease TTL, invocation timeout,
// and resident-actor eviction. The per-actor-type circuit breakers are
// supplied through Deps.Breakers instead.
type Config struct {
	QueueName         string
	LeaseTTL          time.Duration
	InvocationTimeout time.Duration
	IdleEvictAfter    time.Duration
	MaxResident       int
}

// DefaultConfig returns reasonable defaults: a 30s lease (renewed
// every 10s for the whole invocation), a 60s invocation timeout, and 10-minute
// idle eviction with no LRU cap.
func DefaultConfig(queueName string) Config {
	return Config{
		QueueName:         queueName,
		LeaseTTL:          30 * time.Second,
		InvocationTimeout: 60 * time.Second,
		IdleEvictAfter:    10 * time.Minute,
		MaxResident:       0,
	}
}
