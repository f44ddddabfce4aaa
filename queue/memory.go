package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loomrun/loom/resilience"
)

// fifo is a mutex-guarded FIFO slice with no priority concept: jobs are
// delivered strictly in publish order.
type fifo struct {
	mu    sync.Mutex
	items []string // job IDs in delivery order
}

func (f *fifo) push(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, id)
}

func (f *fifo) pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == 0 {
		return "", false
	}
	id := f.items[0]
	f.items = f.items[1:]
	return id, true
}

// MemoryQueue is an in-process Port + MetadataStore, implemented from a
// single struct so job ordering and job metadata stay trivially
// consistent with each other.
type MemoryQueue struct {
	mu       sync.Mutex
	queues   map[string]*fifo
	jobs     map[string]*Job
	retry    resilience.RetryConfig
	notify   map[string]chan struct{}
}

func NewMemoryQueue(retry resilience.RetryConfig) *MemoryQueue {
	return &MemoryQueue{
		queues: make(map[string]*fifo),
		jobs:   make(map[string]*Job),
		retry:  retry,
		notify: make(map[string]chan struct{}),
	}
}

func (q *MemoryQueue) queueFor(name string) *fifo {
	q.mu.Lock()
	defer q.mu.Unlock()
	f, ok := q.queues[name]
	if !ok {
		f = &fifo{}
		q.queues[name] = f
	}
	return f
}

func (q *MemoryQueue) signal(name string) {
	q.mu.Lock()
	ch, ok := q.notify[name]
	q.mu.Unlock()
	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (q *MemoryQueue) Publish(ctx context.Context, queueName string, payload interface{}, opts PublishOptions) (string, error) {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	job := &Job{
		JobID:          uuid.NewString(),
		QueueName:      queueName,
		Payload:        payload,
		AttemptNumber:  0,
		MaxAttempts:    maxAttempts,
		Status:         StatusQueued,
		IdempotencyKey: opts.IdempotencyKey,
		CreatedAt:      time.Now(),
		AvailableAt:    time.Now().Add(opts.Delay),
	}

	q.mu.Lock()
	q.jobs[job.JobID] = job
	q.mu.Unlock()

	if err := q.RecordJob(ctx, job); err != nil {
		return "", err
	}

	if opts.Delay > 0 {
		time.AfterFunc(opts.Delay, func() {
			q.queueFor(queueName).push(job.JobID)
			q.signal(queueName)
		})
		return job.JobID, nil
	}

	q.queueFor(queueName).push(job.JobID)
	q.signal(queueName)
	return job.JobID, nil
}

type memSubscription struct {
	cancel context.CancelFunc
}

func (s *memSubscription) Close() error {
	s.cancel()
	return nil
}

func (q *MemoryQueue) Consume(ctx context.Context, queueName string, handler Handler) (Subscription, error) {
	q.mu.Lock()
	ch, ok := q.notify[queueName]
	if !ok {
		ch = make(chan struct{}, 1)
		q.notify[queueName] = ch
	}
	q.mu.Unlock()

	cctx, cancel := context.WithCancel(ctx)
	f := q.queueFor(queueName)

	go func() {
		for {
			select {
			case <-cctx.Done():
				return
			default:
			}
			id, ok := f.pop()
			if !ok {
				select {
				case <-ch:
				case <-cctx.Done():
					return
				case <-time.After(200 * time.Millisecond):
				}
				continue
			}
			q.mu.Lock()
			job := q.jobs[id]
			q.mu.Unlock()
			if job == nil {
				continue
			}
			if job.AvailableAt.After(time.Now()) {
				f.push(id)
				time.Sleep(10 * time.Millisecond)
				continue
			}

			job.Status = StatusActive
			job.AttemptNumber++
			start := time.Now()
			_ = q.RecordAttempt(cctx, id, Attempt{Event: AttemptStarted, Timestamp: start}, StatusActive)

			err := handler(cctx, job)
			if err != nil {
				_, _ = q.Fail(cctx, id, err, job.AttemptNumber < job.MaxAttempts)
			}
		}
	}()

	return &memSubscription{cancel: cancel}, nil
}

func (q *MemoryQueue) Ack(ctx context.Context, jobID string) error {
	q.mu.Lock()
	job, ok := q.jobs[jobID]
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("queue: unknown job %s", jobID)
	}
	job.Status = StatusCompleted
	return q.RecordAttempt(ctx, jobID, Attempt{Event: AttemptSucceeded, Timestamp: time.Now()}, StatusCompleted)
}

func (q *MemoryQueue) Fail(ctx context.Context, jobID string, cause error, retry bool) (string, error) {
	q.mu.Lock()
	job, ok := q.jobs[jobID]
	q.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("queue: unknown job %s", jobID)
	}

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	if !retry || job.AttemptNumber >= job.MaxAttempts {
		job.Status = StatusDead
		if err := q.RecordAttempt(ctx, jobID, Attempt{Event: AttemptFailed, Timestamp: time.Now(), Error: msg}, StatusDead); err != nil {
			return "", err
		}
		return "", nil
	}

	job.Status = StatusDelayed
	if err := q.RecordAttempt(ctx, jobID, Attempt{Event: AttemptFailed, Timestamp: time.Now(), Error: msg}, StatusDelayed); err != nil {
		return "", err
	}

	delay := q.retry.Delay(job.AttemptNumber)
	time.AfterFunc(delay, func() {
		job.Status = StatusQueued
		q.queueFor(job.QueueName).push(job.JobID)
		q.signal(job.QueueName)
	})
	return job.JobID, nil
}

// --- MetadataStore ---

func (q *MemoryQueue) RecordJob(_ context.Context, job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.JobID] = job
	return nil
}

func (q *MemoryQueue) RecordAttempt(_ context.Context, jobID string, attempt Attempt, status Status) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return fmt.Errorf("queue: unknown job %s", jobID)
	}
	job.Attempts = append(job.Attempts, attempt)
	job.Status = status
	return nil
}

func (q *MemoryQueue) GetJob(_ context.Context, jobID string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("queue: unknown job %s", jobID)
	}
	return job, nil
}

func (q *MemoryQueue) Query(_ context.Context, queueName string, status Status) ([]*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*Job
	for _, j := range q.jobs {
		if j.QueueName == queueName && j.Status == status {
			out = append(out, j)
		}
	}
	return out, nil
}

func (q *MemoryQueue) Stats(_ context.Context, queueName string) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var s Stats
	for _, j := range q.jobs {
		if j.QueueName != queueName {
			continue
		}
		s.TotalJobs++
		switch j.Status {
		case StatusQueued, StatusDelayed:
			s.WaitingJobs++
		case StatusActive:
			s.ActiveJobs++
		case StatusCompleted:
			s.CompletedJobs++
		case StatusFailed, StatusDead:
			s.FailedJobs++
		}
	}
	return s, nil
}
