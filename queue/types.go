// Package queue implements the durable queue port and its metadata
// store: a queue-name-partitioned job lifecycle with attempt history,
// backed by an in-process mutex-guarded queue or by Redis/Postgres.
package queue

import "time"

// Status is a job's position in its lifecycle.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusDelayed   Status = "delayed"
	StatusDead      Status = "dead"
)

// AttemptEvent is one transition in a job's attempt history.
type AttemptEvent string

const (
	AttemptStarted   AttemptEvent = "started"
	AttemptSucceeded AttemptEvent = "succeeded"
	AttemptFailed    AttemptEvent = "failed"
)

// Attempt records one delivery attempt.
type Attempt struct {
	Event      AttemptEvent `json:"event"`
	Timestamp  time.Time    `json:"timestamp"`
	WorkerID   string       `json:"worker_id,omitempty"`
	DurationMS int64        `json:"duration_ms,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Job is the durable unit of work flowing through a queue.
type Job struct {
	JobID         string      `json:"job_id"`
	QueueName     string      `json:"queue_name"`
	Payload       interface{} `json:"payload"`
	AttemptNumber int         `json:"attempt_number"`
	MaxAttempts   int         `json:"max_attempts"`
	Status        Status      `json:"status"`
	Attempts      []Attempt   `json:"attempts"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	AvailableAt   time.Time   `json:"available_at"`
}

// PublishOptions configures a single publish call.
type PublishOptions struct {
	MaxAttempts    int
	IdempotencyKey string
	Delay          time.Duration
}

// Stats are derived from the metadata store, never the queue itself,
//.
type Stats struct {
	TotalJobs     int
	WaitingJobs   int
	ActiveJobs    int
	CompletedJobs int
	FailedJobs    int
}
