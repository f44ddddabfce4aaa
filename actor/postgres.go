package actor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStatePort is the durable StatePort backend, built on a
// pgxpool.Pool with an ON CONFLICT DO UPDATE upsert idiom: one row per
// (tenantId, actorType, actorId) carrying the full materialized state
// and journal as JSONB.
type PostgresStatePort struct {
	pool *pgxpool.Pool
}

func NewPostgresStatePort(ctx context.Context, connString string) (*PostgresStatePort, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 25
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}
	return &PostgresStatePort{pool: pool}, nil
}

func (s *PostgresStatePort) Close() { s.pool.Close() }

func (s *PostgresStatePort) Load(ctx context.Context, id Identity) (*Record, bool, error) {
	query := `
		SELECT actor_id, state, journal, last_invocation, logical_clock, updated_at
		FROM actor_records WHERE tenant_id = $1 AND actor_type = $2 AND actor_id = $3
	`
	var rec Record
	var state, journalRaw []byte
	err := s.pool.QueryRow(ctx, query, id.TenantID, id.ActorType, id.ActorID).Scan(
		&rec.ActorID, &state, &journalRaw, &rec.LastInvocation, &rec.LogicalClock, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(state, &rec.State); err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(journalRaw, &rec.JournalEntries); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (s *PostgresStatePort) Save(ctx context.Context, id Identity, rec Record) error {
	state, err := json.Marshal(rec.State)
	if err != nil {
		return err
	}
	journalRaw, err := json.Marshal(rec.JournalEntries)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO actor_records (tenant_id, actor_type, actor_id, state, journal, last_invocation, logical_clock, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, actor_type, actor_id) DO UPDATE SET
			state = EXCLUDED.state,
			journal = EXCLUDED.journal,
			last_invocation = EXCLUDED.last_invocation,
			logical_clock = EXCLUDED.logical_clock,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.pool.Exec(ctx, query,
		id.TenantID, id.ActorType, id.ActorID, state, journalRaw, rec.LastInvocation, rec.LogicalClock, rec.UpdatedAt,
	)
	return err
}

func (s *PostgresStatePort) Keys(ctx context.Context, tenantID, actorType string) ([]string, error) {
	query := `SELECT actor_id FROM actor_records WHERE tenant_id = $1 AND actor_type = $2`
	rows, err := s.pool.Query(ctx, query, tenantID, actorType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var actorID string
		if err := rows.Scan(&actorID); err != nil {
			return nil, err
		}
		out = append(out, tenantID+"/"+actorType+"/"+actorID)
	}
	return out, rows.Err()
}

var _ StatePort = (*PostgresStatePort)(nil)
