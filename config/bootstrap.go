package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Bootstrap is the process-wide, infra-only configuration loaded once at
// startup — distinct from the tenant/actor-scoped Resolver, which is
// never sourced from this file.
type Bootstrap struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	PostgresDSN   string        `yaml:"postgres_dsn"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	MetricsAddr   string        `yaml:"metrics_addr"`
	NodeID        string        `yaml:"node_id"`
	LeaseTTL      time.Duration `yaml:"lease_ttl"`
}

// defaultBootstrapPaths is tried, in order, when LOOM_CONFIG_PATH is
// unset.
var defaultBootstrapPaths = []string{
	"loom.config.yaml",
	"loom.config.yml",
	".loom.yaml",
	".loom.yml",
	"config/loom.yaml",
	"config/loom.yml",
}

// LoadBootstrap resolves the bootstrap file (LOOM_CONFIG_PATH, else the
// default path list), parses it, then overlays env-var overrides into
// one typed struct.
func LoadBootstrap() (*Bootstrap, []string, error) {
	b := &Bootstrap{
		RedisAddr:   "localhost:6379",
		RedisDB:     0,
		CacheTTL:    30 * time.Second,
		MetricsAddr: ":9090",
		LeaseTTL:    30 * time.Second,
	}

	path := os.Getenv("LOOM_CONFIG_PATH")
	tried := []string{}
	if path != "" {
		tried = append(tried, path)
		if err := loadYAMLInto(path, b); err != nil {
			return nil, tried, err
		}
	} else {
		for _, p := range defaultBootstrapPaths {
			tried = append(tried, p)
			if _, err := os.Stat(p); err == nil {
				if err := loadYAMLInto(p, b); err != nil {
					return nil, tried, err
				}
				break
			}
		}
	}

	applyEnvOverrides(b)

	var missing []string
	if b.RedisAddr == "" {
		missing = append(missing, "redis_addr")
	}
	if b.PostgresDSN == "" {
		missing = append(missing, "postgres_dsn")
	}
	return b, missing, nil
}

func loadYAMLInto(path string, b *Bootstrap) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read bootstrap file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, b); err != nil {
		return fmt.Errorf("config: parse bootstrap file %q: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(b *Bootstrap) {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		b.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		b.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			b.RedisDB = n
		}
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		b.PostgresDSN = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		b.MetricsAddr = v
	}
	if v := os.Getenv("NODE_ID"); v != "" {
		b.NodeID = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			b.CacheTTL = d
		}
	}
	if v := os.Getenv("LEASE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			b.LeaseTTL = d
		}
	}
}
