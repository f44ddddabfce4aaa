package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/loomrun/loom/resilience"
)

// dequeueScript atomically moves one job ID from the ready list to the
// in-flight set and stamps a lease deadline. Loaded once at construction
// and invoked by SHA thereafter.
const dequeueScript = `
local id = redis.call("rpop", KEYS[1])
if not id then
	return false
end
redis.call("hset", KEYS[2], id, ARGV[1])
return id
`

// requeueIfExpiredScript re-appends a job to the ready list if its
// recorded lease deadline is in the past, used by a janitor sweep for
// crash recovery (no heartbeat means the worker died mid-delivery).
const requeueIfExpiredScript = `
local deadline = redis.call("hget", KEYS[2], ARGV[1])
if not deadline then
	return 0
end
if tonumber(deadline) > tonumber(ARGV[2]) then
	return 0
end
redis.call("hdel", KEYS[2], ARGV[1])
redis.call("lpush", KEYS[1], ARGV[1])
return 1
`

// RedisQueue is a Redis Lists-backed FIFO Port: the queue moves job
// IDs, and a separate MetadataStore is the source of truth for job
// state. Redis only holds the ordering structure and the in-flight
// lease hash; durable job rows live in the metadata store.
type RedisQueue struct {
	client *redis.Client
	meta   MetadataStore
	retry  resilience.RetryConfig

	dequeueSHA        string
	requeueExpiredSHA string
}

func readyKey(queueName string) string   { return "loom:queue:" + queueName + ":ready" }
func inflightKey(queueName string) string { return "loom:queue:" + queueName + ":inflight" }

func NewRedisQueue(ctx context.Context, addr, password string, db int, meta MetadataStore, retry resilience.RetryConfig) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		return nil, fmt.Errorf("queue: redis ping: %w", err)
	}

	dequeueSHA, err := client.ScriptLoad(pctx, dequeueScript).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: preload dequeue script: %w", err)
	}
	requeueSHA, err := client.ScriptLoad(pctx, requeueIfExpiredScript).Result()
	if err != nil {
		return nil, fmt.Errorf("queue: preload requeue script: %w", err)
	}

	return &RedisQueue{
		client:            client,
		meta:              meta,
		retry:             retry,
		dequeueSHA:        dequeueSHA,
		requeueExpiredSHA: requeueSHA,
	}, nil
}

func (q *RedisQueue) Publish(ctx context.Context, queueName string, payload interface{}, opts PublishOptions) (string, error) {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	job := &Job{
		JobID:          uuid.NewString(),
		QueueName:      queueName,
		Payload:        payload,
		MaxAttempts:    maxAttempts,
		Status:         StatusQueued,
		IdempotencyKey: opts.IdempotencyKey,
		CreatedAt:      time.Now(),
		AvailableAt:    time.Now().Add(opts.Delay),
	}
	if err := q.meta.RecordJob(ctx, job); err != nil {
		return "", err
	}

	push := func() error { return q.client.LPush(ctx, readyKey(queueName), job.JobID).Err() }
	if opts.Delay <= 0 {
		if err := push(); err != nil {
			return "", err
		}
		return job.JobID, nil
	}
	time.AfterFunc(opts.Delay, func() { _ = push() })
	return job.JobID, nil
}

type redisSubscription struct {
	cancel context.CancelFunc
}

func (s *redisSubscription) Close() error {
	s.cancel()
	return nil
}

func (q *RedisQueue) Consume(ctx context.Context, queueName string, handler Handler) (Subscription, error) {
	cctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-cctx.Done():
				return
			case <-ticker.C:
			}

			res, err := q.client.EvalSha(cctx, q.dequeueSHA, []string{readyKey(queueName), inflightKey(queueName)}, time.Now().Add(30*time.Second).Unix()).Result()
			if err != nil || res == nil {
				continue
			}
			jobID, ok := res.(string)
			if !ok || jobID == "" {
				continue
			}

			job, err := q.meta.GetJob(cctx, jobID)
			if err != nil || job == nil {
				continue
			}
			if job.AvailableAt.After(time.Now()) {
				_ = q.client.LPush(cctx, readyKey(queueName), jobID).Err()
				continue
			}

			job.AttemptNumber++
			_ = q.meta.RecordAttempt(cctx, jobID, Attempt{Event: AttemptStarted, Timestamp: time.Now()}, StatusActive)

			if err := handler(cctx, job); err != nil {
				_, _ = q.Fail(cctx, jobID, err, job.AttemptNumber < job.MaxAttempts)
			}
		}
	}()

	return &redisSubscription{cancel: cancel}, nil
}

func (q *RedisQueue) Ack(ctx context.Context, jobID string) error {
	job, err := q.meta.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("queue: unknown job %s", jobID)
	}
	if err := q.client.HDel(ctx, inflightKey(job.QueueName), jobID).Err(); err != nil {
		return err
	}
	return q.meta.RecordAttempt(ctx, jobID, Attempt{Event: AttemptSucceeded, Timestamp: time.Now()}, StatusCompleted)
}

func (q *RedisQueue) Fail(ctx context.Context, jobID string, cause error, retry bool) (string, error) {
	job, err := q.meta.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job == nil {
		return "", fmt.Errorf("queue: unknown job %s", jobID)
	}

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := q.client.HDel(ctx, inflightKey(job.QueueName), jobID).Err(); err != nil {
		return "", err
	}

	if !retry || job.AttemptNumber >= job.MaxAttempts {
		return "", q.meta.RecordAttempt(ctx, jobID, Attempt{Event: AttemptFailed, Timestamp: time.Now(), Error: msg}, StatusDead)
	}

	if err := q.meta.RecordAttempt(ctx, jobID, Attempt{Event: AttemptFailed, Timestamp: time.Now(), Error: msg}, StatusDelayed); err != nil {
		return "", err
	}
	delay := q.retry.Delay(job.AttemptNumber)
	time.AfterFunc(delay, func() {
		_ = q.client.LPush(context.Background(), readyKey(job.QueueName), jobID).Err()
	})
	return jobID, nil
}

// ReapExpiredLeases sweeps the in-flight hash of queueName for entries
// whose lease deadline has passed and requeues them, recovering jobs
// whose worker crashed mid-delivery without acking or failing. Intended
// to be run periodically by a background ticker loop.
func (q *RedisQueue) ReapExpiredLeases(ctx context.Context, queueName string) (int, error) {
	ids, err := q.client.HKeys(ctx, inflightKey(queueName)).Result()
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, id := range ids {
		res, err := q.client.EvalSha(ctx, q.requeueExpiredSHA, []string{readyKey(queueName), inflightKey(queueName)}, id, time.Now().Unix()).Result()
		if err != nil {
			continue
		}
		if n, ok := res.(int64); ok && n == 1 {
			recovered++
		}
	}
	return recovered, nil
}

// marshalPayload is used by MetadataStore implementations (e.g. a
// Postgres-backed one) that need to store Payload as JSONB; kept here
// since it is the one encoding concern shared by every backend.
func marshalPayload(v interface{}) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func unmarshalPayload(data []byte) (interface{}, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

var errJobNotFound = errors.New("queue: job not found")
