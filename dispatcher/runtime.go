package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/loomrun/loom/actor"
	"github.com/loomrun/loom/config"
	"github.com/loomrun/loom/errs"
	"github.com/loomrun/loom/idempotency"
	"github.com/loomrun/loom/journal"
	"github.com/loomrun/loom/memory"
	"github.com/loomrun/loom/observability"
	"github.com/loomrun/loom/queue"
	"github.com/loomrun/loom/resilience"
	"github.com/loomrun/loom/state"
)

// Runtime is the Dispatcher: it consumes one queue, and for every
// message drives the hydrate/idempotency/execute/persist-or-compensate
// protocol.
type Runtime struct {
	cfg Config

	queue    queue.Port
	states   actor.StatePort
	leases   actor.LeasePort
	idem     *idempotency.Store
	handlers Handlers

	activities actor.ActivityPort
	spawner    actor.ChildSpawner
	events     actor.EventWaiter
	resolver   config.Resolver
	memIndex   *memory.Index

	breakers *resilience.CircuitBreakerRegistry
	registry *actor.Registry

	failureObserver FailureObserver

	now func() time.Time
}

// Deps bundles the Runtime's collaborators. Activities, Spawner,
// Events, Resolver, and MemIndex may be nil; Core then rejects the
// corresponding suspension point or GetConfig call, and its memory
// helpers become no-ops. FailureObserver may be nil; no
// dead-letter notification is emitted.
type Deps struct {
	Queue      queue.Port
	States     actor.StatePort
	Leases     actor.LeasePort
	Idem       *idempotency.Store
	Handlers   Handlers
	Activities actor.ActivityPort
	Spawner    actor.ChildSpawner
	Events     actor.EventWaiter
	Resolver   config.Resolver
	MemIndex   *memory.Index
	Breakers   *resilience.CircuitBreakerRegistry

	FailureObserver FailureObserver
}

// New assembles a Runtime. The eviction callback it passes to the
// underlying actor.Registry only counts the eviction in a metric, since
// the persisted Record is the source of truth and nothing further
// needs flushing on evict.
func New(cfg Config, deps Deps) *Runtime {
	breakers := deps.Breakers
	if breakers == nil {
		breakers = resilience.NewCircuitBreakerRegistry(resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
			HalfOpenRequests: 3,
		})
	}
	r := &Runtime{
		cfg:             cfg,
		queue:           deps.Queue,
		states:          deps.States,
		leases:          deps.Leases,
		idem:            deps.Idem,
		handlers:        deps.Handlers,
		activities:      deps.Activities,
		spawner:         deps.Spawner,
		events:          deps.Events,
		resolver:        deps.Resolver,
		memIndex:        deps.MemIndex,
		breakers:        breakers,
		failureObserver: deps.FailureObserver,
		now:             time.Now,
	}
	r.registry = actor.NewRegistry(cfg.IdleEvictAfter, cfg.MaxResident, func(id actor.Identity) {
		observability.ActorEvictions.WithLabelValues("idle_or_lru").Inc()
	})
	return r
}

// Run subscribes to the configured queue and drives every delivered
// message through handleJob until ctx is done.
func (r *Runtime) Run(ctx context.Context) (queue.Subscription, error) {
	r.registry.StartIdleSweep(ctx, r.cfg.IdleEvictAfter/3+time.Second)
	return r.queue.Consume(ctx, r.cfg.QueueName, r.handleJob)
}

// renewLease renews leaseID on an interval well inside its TTL until
// ctx is done, then closes done. After maxRenewFailures consecutive
// renewal errors it calls stop and exits, since a lease that cannot be
// renewed may already be held by another worker.
func (r *Runtime) renewLease(ctx context.Context, stop context.CancelFunc, id actor.Identity, leaseID string, done chan struct{}) {
	defer close(done)

	interval := r.cfg.LeaseTTL / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	const maxRenewFailures = 3
	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.leases.Renew(ctx, leaseID, r.cfg.LeaseTTL); err != nil {
				failures++
				log.Printf("dispatcher: renew lease for %s: %v (%d/%d)", id, err, failures, maxRenewFailures)
				if failures >= maxRenewFailures {
					log.Printf("dispatcher: lease for %s not renewed after %d attempts, aborting invocation", id, failures)
					stop()
					return
				}
				continue
			}
			failures = 0
		}
	}
}

func decodeMessage(payload interface{}) (actor.Message, error) {
	if msg, ok := payload.(actor.Message); ok {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return actor.Message{}, fmt.Errorf("dispatcher: re-marshal payload: %w", err)
	}
	var msg actor.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return actor.Message{}, fmt.Errorf("dispatcher: decode message: %w", err)
	}
	return msg, nil
}

// handleJob implements the 8-step dispatch protocol. The job has
// already been dequeued by queue.Port before this is called; a
// returned error causes the queue to retry (with backoff) or
// dead-letter per its own attempt accounting.
func (r *Runtime) handleJob(ctx context.Context, job *queue.Job) error {
	msg, err := decodeMessage(job.Payload)
	if err != nil {
		return errs.Permanent("decode message", err)
	}
	id := msg.ActorRef
	actorType := id.ActorType
	if actorType == "" {
		actorType = msg.Metadata.ActorType
	}

	// Step: acquire lease.
	leaseID, ok, err := r.leases.Acquire(ctx, id.String(), r.cfg.LeaseTTL)
	if err != nil {
		return errs.Transient("acquire lease", err)
	}
	if !ok {
		observability.LeaseAcquireFailures.WithLabelValues(actorType).Inc()
		return errs.Transient(fmt.Sprintf("lease for %s already held", id), nil)
	}

	// A background renewer keeps the lease alive for the lifetime of
	// this invocation, including while suspended on a handler
	// suspension point. If renewal keeps failing, stopRenew cancels
	// ctx (used for the rest of this invocation below) so execution
	// aborts instead of continuing after mutual exclusion may have
	// been lost to another worker.
	renewCtx, stopRenew := context.WithCancel(ctx)
	renewDone := make(chan struct{})
	go r.renewLease(renewCtx, stopRenew, id, leaseID, renewDone)
	ctx = renewCtx
	defer func() {
		stopRenew()
		<-renewDone
		if relErr := r.leases.Release(context.Background(), leaseID); relErr != nil {
			log.Printf("dispatcher: release lease for %s: %v", id, relErr)
		}
	}()

	r.registry.Touch(id, actor.StatusHydrating)
	observability.ResidentActors.Set(float64(r.registry.Size()))

	// Step: hydrate.
	rec, existed, err := r.states.Load(ctx, id)
	if err != nil {
		return errs.Transient("load actor record", err)
	}
	if !existed {
		rec = &actor.Record{ActorID: id.ActorID, State: map[string]state.Value{}}
	}
	mgr := state.NewManager(rec.State)
	jrnl := journal.FromEntries(rec.JournalEntries)

	// Step: idempotency check.
	if msg.IdempotencyKey != "" {
		if result, hit := r.idem.Get(ctx, id.TenantID, id.ActorID, msg.IdempotencyKey); hit {
			observability.ActorInvocations.WithLabelValues(actorType, "idempotent_hit").Inc()
			r.registry.MarkIdle(id)
			return r.ack(ctx, job, id, rec, jrnl, result.InvocationID)
		}
	}

	// Step: record invocation.
	inv := jrnl.RecordInvocation(msg.MessageID, msg.Payload, msg.Metadata.Timestamp)
	observability.JournalEntriesAppended.WithLabelValues(string(journal.EntryInvocation)).Inc()
	stateLenBeforeExec := jrnl.Len()

	handler, ok := r.handlers[actorType]
	if !ok {
		return errs.Permanent(fmt.Sprintf("no handler registered for actor type %q", actorType), nil)
	}

	core := actor.NewCore(id, mgr, jrnl, r.activities, r.spawner, r.events, r.resolver, r.memIndex)

	r.registry.Touch(id, actor.StatusExecuting)
	start := r.now()
	breaker := r.breakers.For(actorType)

	var output interface{}
	execErr := breaker.Call(actorType, func() error {
		var innerErr error
		_, innerErr = resilience.Timeout(ctx, r.cfg.InvocationTimeout, "actor.execute", func(tctx context.Context) (any, error) {
			output, innerErr = handler(tctx, core, msg.Payload)
			return output, innerErr
		})
		return innerErr
	})
	observability.ActorInvocationDuration.WithLabelValues(actorType).Observe(r.now().Sub(start).Seconds())

	r.registry.Touch(id, actor.StatusPersisting)

	if execErr != nil {
		correlationID := msg.CorrelationID
		if correlationID == "" {
			correlationID = msg.MessageID
		}
		return r.compensateAndFail(ctx, job, id, actorType, correlationID, mgr, jrnl, stateLenBeforeExec, inv, execErr)
	}

	observability.ActorInvocations.WithLabelValues(actorType, "success").Inc()
	if msg.IdempotencyKey != "" {
		r.idem.Set(ctx, id.TenantID, id.ActorID, msg.IdempotencyKey, idempotency.Result{
			Output:       output,
			InvocationID: msg.MessageID,
			CompletedAt:  r.now(),
		})
	}
	r.registry.MarkIdle(id)
	return r.persistAndAck(ctx, job, id, mgr, jrnl, msg.MessageID)
}

func (r *Runtime) persistAndAck(ctx context.Context, job *queue.Job, id actor.Identity, mgr *state.Manager, jrnl *journal.Journal, lastInvocation string) error {
	rec := actor.Record{
		ActorID:        id.ActorID,
		State:          mgr.Current(),
		JournalEntries: jrnl.Entries(),
		LastInvocation: lastInvocation,
		UpdatedAt:      r.now(),
	}
	if err := r.states.Save(ctx, id, rec); err != nil {
		return errs.Transient("persist actor record", err)
	}
	return r.queue.Ack(ctx, job.JobID)
}

func (r *Runtime) ack(ctx context.Context, job *queue.Job, id actor.Identity, rec *actor.Record, jrnl *journal.Journal, lastInvocation string) error {
	updated := actor.Record{
		ActorID:        id.ActorID,
		State:          rec.State,
		JournalEntries: jrnl.Entries(),
		LastInvocation: lastInvocation,
		UpdatedAt:      r.now(),
	}
	if err := r.states.Save(ctx, id, updated); err != nil {
		return errs.Transient("persist actor record", err)
	}
	return r.queue.Ack(ctx, job.JobID)
}

// compensateAndFail rolls back every StatePatches entry this
// invocation added, persists the failed-invocation marker, and returns
// an error so the queue retries or dead-letters it. When job has
// exhausted its retry budget, it additionally notifies the configured
// FailureObserver before returning.
func (r *Runtime) compensateAndFail(ctx context.Context, job *queue.Job, id actor.Identity, actorType, correlationID string, mgr *state.Manager, jrnl *journal.Journal, sinceIndex int, inv journal.Entry, execErr error) error {
	if compErr := jrnl.CompensateSince(mgr, sinceIndex, r.now()); compErr != nil {
		log.Printf("dispatcher: compensate invocation %s for %s: %v", inv.MessageID, id, compErr)
	} else {
		observability.CompensationsApplied.Inc()
	}
	observability.ActorInvocations.WithLabelValues(actorType, "failed").Inc()

	rec := actor.Record{
		ActorID:        id.ActorID,
		State:          mgr.Current(),
		JournalEntries: jrnl.Entries(),
		LastInvocation: inv.MessageID,
		UpdatedAt:      r.now(),
	}
	if err := r.states.Save(ctx, id, rec); err != nil {
		log.Printf("dispatcher: persist failed record for %s: %v", id, err)
	}
	r.registry.MarkIdle(id)

	if r.failureObserver != nil && job.AttemptNumber >= job.MaxAttempts {
		r.failureObserver(ctx, FailureEvent{
			Kind:          errs.KindOf(execErr),
			Message:       errs.RedactedMessage(execErr),
			Attempt:       job.AttemptNumber,
			ActorRef:      id.String(),
			CorrelationID: correlationID,
		})
	}
	return execErr
}
