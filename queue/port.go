package queue

import "context"

// Handler processes one job's payload. Returning a non-nil error fails
// the delivery; the queue decides retry vs dead-letter per its backoff
// policy.
type Handler func(ctx context.Context, job *Job) error

// Subscription is returned by Consume; Close stops delivery to handler.
type Subscription interface {
	Close() error
}

// Port is the durable queue contract: at-least-once delivery, FIFO
// within a queue, independent queues unordered.
type Port interface {
	Publish(ctx context.Context, queueName string, payload interface{}, opts PublishOptions) (jobID string, err error)
	Consume(ctx context.Context, queueName string, handler Handler) (Subscription, error)
	Ack(ctx context.Context, jobID string) error
	// Fail reports a failed delivery. If retry is true and attempts
	// remain, the job is re-enqueued (newJobID may equal jobID) with
	// backoff; otherwise it is marked dead.
	Fail(ctx context.Context, jobID string, cause error, retry bool) (newJobID string, err error)
}

// MetadataStore records every job transition and answers Stats queries,
// ("Stats are derived from the metadata store, not the
// queue").
type MetadataStore interface {
	RecordJob(ctx context.Context, job *Job) error
	RecordAttempt(ctx context.Context, jobID string, attempt Attempt, status Status) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	Query(ctx context.Context, queueName string, status Status) ([]*Job, error)
	Stats(ctx context.Context, queueName string) (Stats, error)
}
