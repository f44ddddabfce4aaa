package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresMetadataStore is the durable system of record for job state,
// built on a tuned pgxpool.Pool with JSONB columns: queue-name-
// partitioned rows with an attempt history column.
type PostgresMetadataStore struct {
	pool *pgxpool.Pool
}

func NewPostgresMetadataStore(ctx context.Context, connString string) (*PostgresMetadataStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return &PostgresMetadataStore{pool: pool}, nil
}

func (s *PostgresMetadataStore) Close() { s.pool.Close() }

func (s *PostgresMetadataStore) RecordJob(ctx context.Context, job *Job) error {
	payload, err := marshalPayload(job.Payload)
	if err != nil {
		return err
	}
	attempts, err := json.Marshal(job.Attempts)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO queue_jobs (job_id, queue_name, payload, attempt_number, max_attempts, status, attempts, idempotency_key, created_at, available_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (job_id) DO UPDATE SET
			status = EXCLUDED.status,
			attempt_number = EXCLUDED.attempt_number,
			attempts = EXCLUDED.attempts,
			available_at = EXCLUDED.available_at
	`
	_, err = s.pool.Exec(ctx, query,
		job.JobID, job.QueueName, payload, job.AttemptNumber, job.MaxAttempts,
		job.Status, attempts, job.IdempotencyKey, job.CreatedAt, job.AvailableAt,
	)
	return err
}

func (s *PostgresMetadataStore) RecordAttempt(ctx context.Context, jobID string, attempt Attempt, status Status) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return errJobNotFound
	}
	job.Attempts = append(job.Attempts, attempt)
	job.Status = status
	if attempt.Event == AttemptStarted {
		job.AttemptNumber++
	}
	return s.RecordJob(ctx, job)
}

func (s *PostgresMetadataStore) scanJob(row pgx.Row) (*Job, error) {
	var j Job
	var payload []byte
	var attempts []byte
	err := row.Scan(
		&j.JobID, &j.QueueName, &payload, &j.AttemptNumber, &j.MaxAttempts,
		&j.Status, &attempts, &j.IdempotencyKey, &j.CreatedAt, &j.AvailableAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.Payload, err = unmarshalPayload(payload)
	if err != nil {
		return nil, err
	}
	if len(attempts) > 0 {
		if err := json.Unmarshal(attempts, &j.Attempts); err != nil {
			return nil, err
		}
	}
	return &j, nil
}

func (s *PostgresMetadataStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	query := `
		SELECT job_id, queue_name, payload, attempt_number, max_attempts, status, attempts, idempotency_key, created_at, available_at
		FROM queue_jobs WHERE job_id = $1
	`
	return s.scanJob(s.pool.QueryRow(ctx, query, jobID))
}

func (s *PostgresMetadataStore) Query(ctx context.Context, queueName string, status Status) ([]*Job, error) {
	query := `
		SELECT job_id, queue_name, payload, attempt_number, max_attempts, status, attempts, idempotency_key, created_at, available_at
		FROM queue_jobs WHERE queue_name = $1 AND status = $2
		ORDER BY created_at ASC
	`
	rows, err := s.pool.Query(ctx, query, queueName, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := s.scanJob(rows)
		if err != nil {
			return nil, err
		}
		if j != nil {
			jobs = append(jobs, j)
		}
	}
	return jobs, rows.Err()
}

func (s *PostgresMetadataStore) Stats(ctx context.Context, queueName string) (Stats, error) {
	query := `
		SELECT status, count(*) FROM queue_jobs WHERE queue_name = $1 GROUP BY status
	`
	rows, err := s.pool.Query(ctx, query, queueName)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	var st Stats
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		st.TotalJobs += count
		switch status {
		case StatusQueued, StatusDelayed:
			st.WaitingJobs += count
		case StatusActive:
			st.ActiveJobs += count
		case StatusCompleted:
			st.CompletedJobs += count
		case StatusFailed, StatusDead:
			st.FailedJobs += count
		}
	}
	return st, rows.Err()
}
