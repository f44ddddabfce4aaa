package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheSetScript writes a value/timestamp hash and sets its TTL in one
// round trip via a single Lua script. The cache layer always accepts
// the latest write; ordering is the persist layer's concern.
const cacheSetScript = `
redis.call("HSET", KEYS[1], "value", ARGV[1], "timestamp", ARGV[2])
if tonumber(ARGV[3]) > 0 then
	redis.call("EXPIRE", KEYS[1], ARGV[3])
end
return 1
`

// RedisStore is the TTL-bound CacheStore backend. Its Lua scripts are
// loaded once at construction and invoked by SHA thereafter.
type RedisStore struct {
	client      *redis.Client
	cacheSetSHA string
}

func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		return nil, fmt.Errorf("config: redis ping: %w", err)
	}

	sha, err := client.ScriptLoad(pctx, cacheSetScript).Result()
	if err != nil {
		return nil, fmt.Errorf("config: preload cache-set script: %w", err)
	}
	return &RedisStore{client: client, cacheSetSHA: sha}, nil
}

func (s *RedisStore) Get(ctx context.Context, path string) (*Record, bool, error) {
	res, err := s.client.HGetAll(ctx, cacheKey(path)).Result()
	if err != nil {
		return nil, false, err
	}
	if len(res) == 0 {
		return nil, false, nil
	}
	var value interface{}
	if err := json.Unmarshal([]byte(res["value"]), &value); err != nil {
		return nil, false, err
	}
	var updatedAt time.Time
	if ts := res["timestamp"]; ts != "" {
		var unix int64
		if _, err := fmt.Sscanf(ts, "%d", &unix); err == nil {
			updatedAt = time.Unix(unix, 0)
		}
	}
	return &Record{Path: path, Value: value, UpdatedAt: updatedAt}, true, nil
}

func (s *RedisStore) Set(ctx context.Context, path string, rec Record, ttl time.Duration) error {
	valueJSON, err := json.Marshal(rec.Value)
	if err != nil {
		return err
	}
	res, err := s.client.EvalSha(ctx, s.cacheSetSHA, []string{cacheKey(path)},
		string(valueJSON), rec.UpdatedAt.Unix(), int(ttl.Seconds())).Result()
	var noscript redis.Error
	if errors.As(err, &noscript) {
		s.cacheSetSHA, err = s.client.ScriptLoad(ctx, cacheSetScript).Result()
		if err != nil {
			return err
		}
		res, err = s.client.EvalSha(ctx, s.cacheSetSHA, []string{cacheKey(path)},
			string(valueJSON), rec.UpdatedAt.Unix(), int(ttl.Seconds())).Result()
	}
	if err != nil {
		return err
	}
	if n, ok := res.(int64); !ok || n != 1 {
		return fmt.Errorf("config: unexpected cache-set result %v", res)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	return s.client.Del(ctx, cacheKey(path)).Err()
}

func cacheKey(path string) string { return "loom:config:cache:" + path }
