package config

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the durable persist layer, built on a pgxpool.Pool
// with an ON CONFLICT DO UPDATE upsert idiom, partitioned by the key
// path's leading tenant segment.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
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
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

// tenantPartition extracts the leading path segment to use as the
// partition column; paths with no "/" partition under "global".
func tenantPartition(path string) string {
	if idx := strings.IndexByte(path, '/'); idx >= 0 {
		return path[:idx]
	}
	return globalPartition
}

const globalPartition = "global"

func (s *PostgresStore) Get(ctx context.Context, path string) (*Record, bool, error) {
	query := `SELECT path, value, updated_at FROM config_records WHERE partition = $1 AND path = $2`
	var rec Record
	var raw []byte
	err := s.pool.QueryRow(ctx, query, tenantPartition(path), path).Scan(&rec.Path, &raw, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(raw, &rec.Value); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO config_records (partition, path, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (partition, path) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`
	_, err = s.pool.Exec(ctx, query, tenantPartition(path), path, raw)
	return err
}

func (s *PostgresStore) Delete(ctx context.Context, path string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM config_records WHERE partition = $1 AND path = $2`, tenantPartition(path), path)
	return err
}

func (s *PostgresStore) GetAll(ctx context.Context, prefix string) ([]Record, error) {
	query := `SELECT path, value, updated_at FROM config_records WHERE path LIKE $1`
	rows, err := s.pool.Query(ctx, query, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var raw []byte
		if err := rows.Scan(&rec.Path, &raw, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &rec.Value); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT path FROM config_records WHERE path LIKE $1`
	rows, err := s.pool.Query(ctx, query, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, rows.Err()
}
