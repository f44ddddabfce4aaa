// Package observability holds the process's Prometheus metric
// registrations as a package-level promauto var block, covering the
// actor/journal/memory/queue/config-cache concerns of this runtime.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActorInvocations tracks dispatcher invocations by actor type and
	// outcome.
	ActorInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_actor_invocations_total",
		Help: "Total actor invocations by actor type and outcome",
	}, []string{"actor_type", "outcome"}) // outcome: success, failed, idempotent_hit

	// ActorInvocationDuration tracks handler execution time.
	ActorInvocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loom_actor_invocation_duration_seconds",
		Help:    "Actor handler execution time",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"actor_type"})

	// ResidentActors tracks the in-memory actor registry's current size.
	ResidentActors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "loom_resident_actors",
		Help: "Current number of actor instances resident in memory",
	})

	// ActorEvictions tracks instances dropped from the resident registry.
	ActorEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_actor_evictions_total",
		Help: "Total actor instances evicted from the resident registry",
	}, []string{"reason"}) // reason: idle_or_lru (the registry callback does not tell the two apart)

	// JournalEntriesAppended tracks journal growth by entry kind.
	JournalEntriesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_journal_entries_appended_total",
		Help: "Total journal entries appended by kind",
	}, []string{"kind"})

	// CompensationsApplied tracks rollback events after a failed invocation.
	CompensationsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loom_compensations_applied_total",
		Help: "Total invocation rollbacks applied after a failed handler",
	})

	// QueueDepth tracks pending job counts by queue and status.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "loom_queue_depth",
		Help: "Current number of jobs in a queue by status",
	}, []string{"queue", "status"})

	// JobRetries tracks retry attempts by queue.
	JobRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_job_retries_total",
		Help: "Total job retry attempts by queue",
	}, []string{"queue"})

	// DeadLetters tracks jobs that exhausted their retry budget.
	DeadLetters = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_dead_letters_total",
		Help: "Total jobs moved to the dead-letter state by queue",
	}, []string{"queue"})

	// LeaseAcquireFailures tracks contended actor leases.
	LeaseAcquireFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_lease_acquire_failures_total",
		Help: "Total actor lease acquisitions that found the resource already held",
	}, []string{"actor_type"})

	// CircuitBreakerState tracks per-actor-type breaker state.
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "loom_circuit_breaker_state",
		Help: "Per-actor-type circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"actor_type"})

	// ConfigCacheHits tracks the resolver's cache-layer hit rate.
	ConfigCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_config_cache_hits_total",
		Help: "Config resolver read outcomes by layer",
	}, []string{"layer"}) // layer: cache, persist, miss

	// ConfigChangeNotifications tracks OnChange listener dispatch.
	ConfigChangeNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_config_change_notifications_total",
		Help: "Total config change events delivered to listeners",
	}, []string{"kind"}) // kind: set, delete

	// MemoryDedupMerges tracks dedup-on-insert merges in the memory index.
	MemoryDedupMerges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loom_memory_dedup_merges_total",
		Help: "Total memory-add calls that merged into an existing item",
	})

	// SemanticCacheHits tracks semantic-cache lookups by outcome.
	SemanticCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_semantic_cache_lookups_total",
		Help: "Semantic cache lookups by outcome",
	}, []string{"outcome"}) // outcome: hit, miss, expired

	// TriggerEventsReceived tracks normalized external events ingested by adapter.
	TriggerEventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loom_trigger_events_received_total",
		Help: "Total external events ingested by trigger adapter",
	}, []string{"adapter"})
)
