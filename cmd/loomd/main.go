// Command loomd is the actor runtime process entrypoint: it constructs
// the backend stores, then the dispatcher, then starts listening.
//
// Redis and Postgres connection info is read from the bootstrap config;
// if either is absent, loomd runs in standalone mode against in-process
// backends rather than refusing to start.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/loomrun/loom/actor"
	"github.com/loomrun/loom/config"
	"github.com/loomrun/loom/dispatcher"
	"github.com/loomrun/loom/idempotency"
	"github.com/loomrun/loom/lease"
	"github.com/loomrun/loom/memory"
	"github.com/loomrun/loom/observability"
	"github.com/loomrun/loom/queue"
	"github.com/loomrun/loom/resilience"
	"github.com/loomrun/loom/trigger"
)

const actorQueueName = "loom:actors:default"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	boot, missing, err := config.LoadBootstrap()
	if err != nil {
		log.Fatalf("loomd: load bootstrap config: %v", err)
	}
	if len(missing) > 0 {
		log.Printf("loomd: bootstrap config missing %v; running in standalone mode against in-process backends", missing)
	}

	durable := boot.RedisAddr != "" && boot.PostgresDSN != ""

	retry := resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond, Multiplier: 2, MaxDelay: 30 * time.Second}

	var (
		states    actor.StatePort
		leasePort actor.LeasePort
		resolver  config.Resolver
		idemStore *idempotency.Store
		vectorIdx memory.VectorIndex
		jobQueue  queue.Port
	)

	if durable {
		log.Printf("loomd: durable mode (redis=%s, postgres configured)", boot.RedisAddr)

		redisClient := redis.NewClient(&redis.Options{Addr: boot.RedisAddr, Password: boot.RedisPassword, DB: boot.RedisDB})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("loomd: redis ping: %v", err)
		}

		pgStates, err := actor.NewPostgresStatePort(ctx, boot.PostgresDSN)
		if err != nil {
			log.Fatalf("loomd: connect actor state store: %v", err)
		}
		states = pgStates

		redisLease, err := lease.NewRedisLease(ctx, redisClient)
		if err != nil {
			log.Fatalf("loomd: preload lease scripts: %v", err)
		}
		leasePort = redisLease

		cacheStore, err := config.NewRedisStore(ctx, boot.RedisAddr, boot.RedisPassword, boot.RedisDB)
		if err != nil {
			log.Fatalf("loomd: connect config cache store: %v", err)
		}
		persistStore, err := config.NewPostgresStore(ctx, boot.PostgresDSN)
		if err != nil {
			log.Fatalf("loomd: connect config persist store: %v", err)
		}
		resolver = config.NewLayeredResolver(cacheStore, persistStore, boot.CacheTTL)

		idemStore = idempotency.NewStore(idempotency.NewRedisBackend(redisClient), 24*time.Hour)
		vectorIdx = memory.NewRedisVectorIndex(redisClient)

		meta, err := queue.NewPostgresMetadataStore(ctx, boot.PostgresDSN)
		if err != nil {
			log.Fatalf("loomd: connect queue metadata store: %v", err)
		}
		redisQueue, err := queue.NewRedisQueue(ctx, boot.RedisAddr, boot.RedisPassword, boot.RedisDB, meta, retry)
		if err != nil {
			log.Fatalf("loomd: preload queue scripts: %v", err)
		}
		jobQueue = redisQueue

		go reapExpiredLeasesLoop(ctx, redisQueue, actorQueueName, 30*time.Second)
	} else {
		log.Println("loomd: standalone mode (in-process state, lease, config, queue, memory)")

		states = actor.NewInMemoryStatePort()
		leasePort = lease.NewInMemoryLease()
		resolver = config.NewLayeredResolver(config.NewMemoryStore(), config.NewMemoryPersistStore(), boot.CacheTTL)
		idemStore = idempotency.NewStore(nil, 24*time.Hour)
		vectorIdx = memory.NewInMemoryVectorIndex()
		jobQueue = queue.NewMemoryQueue(retry)
	}

	memIndex := memory.NewIndex(vectorIdx)
	eventBroker := trigger.NewEventBroker()

	cfg := dispatcher.DefaultConfig(actorQueueName)
	cfg.LeaseTTL = boot.LeaseTTL

	// Activities and Spawner are left unconfigured: both are
	// request/reply-over-queue transports whose concrete shape is
	// deployment-specific. Core degrades to a permanent error if a
	// handler calls CallActivity/SpawnChild without one configured.
	rt := dispatcher.New(cfg, dispatcher.Deps{
		Queue:           jobQueue,
		States:          states,
		Leases:          leasePort,
		Idem:            idemStore,
		Handlers:        registeredHandlers(),
		Events:          eventBroker,
		Resolver:        resolver,
		MemIndex:        memIndex,
		FailureObserver: logFailureObserver,
	})

	if _, err := rt.Run(ctx); err != nil {
		log.Fatalf("loomd: start dispatcher: %v", err)
	}
	log.Printf("loomd: dispatcher consuming %q", actorQueueName)

	router := trigger.NewRouter(func(ctx context.Context, msg trigger.Message) error {
		am := actor.Message{
			MessageID:      msg.MessageID,
			ActorRef:       actor.Identity{TenantID: msg.TenantID, ActorType: msg.ActorType, ActorID: msg.ActorID},
			MessageType:    msg.MessageType,
			CorrelationID:  msg.CorrelationID,
			Payload:        msg.Payload,
			IdempotencyKey: msg.IdempotencyKey,
			Metadata:       actor.MessageMetadata{Timestamp: time.Now(), ActorType: msg.ActorType},
		}
		_, err := jobQueue.Publish(ctx, actorQueueName, am, queue.PublishOptions{MaxAttempts: 5, IdempotencyKey: msg.IdempotencyKey})
		return err
	})
	router.Register(trigger.NewTimerAdapter("heartbeat", time.Minute))
	go func() {
		if err := router.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("loomd: trigger router stopped: %v", err)
		}
	}()

	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: boot.MetricsAddr}
	go func() {
		log.Printf("loomd: metrics listening on %s", boot.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("loomd: metrics server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("loomd: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// reapExpiredLeasesLoop periodically recovers jobs whose worker crashed
// mid-delivery without acking or failing.
func reapExpiredLeasesLoop(ctx context.Context, q *queue.RedisQueue, queueName string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := q.ReapExpiredLeases(ctx, queueName); err != nil {
				log.Printf("loomd: reap expired leases: %v", err)
			} else if n > 0 {
				log.Printf("loomd: reaped %d expired leases on %s", n, queueName)
			}
		}
	}
}

// logFailureObserver is the default FailureObserver: it logs the
// dead-lettered invocation and increments the dead-letter metric. A
// deployment that needs to page on-call or write to an incident
// system swaps this for one that also forwards ev somewhere durable.
func logFailureObserver(_ context.Context, ev dispatcher.FailureEvent) {
	observability.DeadLetters.WithLabelValues(actorQueueName).Inc()
	log.Printf("loomd: dead-letter actor=%s correlation=%s attempt=%d kind=%s: %s",
		ev.ActorRef, ev.CorrelationID, ev.Attempt, ev.Kind, ev.Message)
}

// registeredHandlers returns the actor types this process knows how to
// execute. A real deployment registers its own business handlers here;
// echo is kept as a smoke-test actor type exercising the full
// hydrate/execute/persist path with no external collaborators.
func registeredHandlers() dispatcher.Handlers {
	return dispatcher.Handlers{
		"echo": func(ctx context.Context, c *actor.Core, input interface{}) (interface{}, error) {
			if err := c.UpdateState(func(draft interface{}) interface{} {
				m, ok := draft.(map[string]interface{})
				if !ok {
					m = map[string]interface{}{}
				}
				m["lastInput"] = input
				return m
			}); err != nil {
				return nil, err
			}
			return input, nil
		},
	}
}
