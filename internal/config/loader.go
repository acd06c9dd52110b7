package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "codesmith.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	path := os.Getenv("CODESMITH_CONFIG")
	if path == "" {
		path = DefaultConfigFile
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Logging.Level, "CODESMITH_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CODESMITH_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "CODESMITH_LOG_ASYNC")

	setString(&cfg.Store.Driver, "CODESMITH_STORE_DRIVER")
	setString(&cfg.Store.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Store.Postgres.MaxConns, "CODESMITH_PG_MAX_CONNS")
	setInt32(&cfg.Store.Postgres.MinConns, "CODESMITH_PG_MIN_CONNS")
	setDuration(&cfg.Store.Postgres.MaxConnLifetime, "CODESMITH_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Store.Postgres.MaxConnIdleTime, "CODESMITH_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Store.Postgres.HealthCheck, "CODESMITH_PG_HEALTH_CHECK")

	setString(&cfg.Decision.BaseURL, "CODESMITH_DECISION_URL")
	setString(&cfg.Decision.Model, "CODESMITH_DECISION_MODEL")
	setFloat64(&cfg.Decision.Temperature, "CODESMITH_DECISION_TEMPERATURE")
	setDuration(&cfg.Decision.RequestTimeout, "CODESMITH_DECISION_TIMEOUT")
	setInt(&cfg.Decision.BreakerThreshold, "CODESMITH_BREAKER_THRESHOLD")
	setDuration(&cfg.Decision.BreakerCooldown, "CODESMITH_BREAKER_COOLDOWN")

	setInt(&cfg.Orchestrator.MaxIterations, "CODESMITH_MAX_ITERATIONS")
	setInt(&cfg.Orchestrator.MaxConsecutiveFailures, "CODESMITH_MAX_CONSECUTIVE_FAILURES")
	setDuration(&cfg.Orchestrator.ActionTimeout, "CODESMITH_ACTION_TIMEOUT")
	setInt(&cfg.Orchestrator.EventBuffer, "CODESMITH_EVENT_BUFFER")
	setInt(&cfg.Orchestrator.MaxConcurrentTasks, "CODESMITH_MAX_CONCURRENT_TASKS")

	setInt(&cfg.Memory.MaxMessages, "CODESMITH_MEMORY_MAX_MESSAGES")
	setInt(&cfg.Memory.MaxTokens, "CODESMITH_MEMORY_MAX_TOKENS")
	setString(&cfg.Memory.Encoding, "CODESMITH_MEMORY_ENCODING")

	setInt64(&cfg.Security.MaxReadBytes, "CODESMITH_MAX_READ_BYTES")
	setInt64(&cfg.Security.MaxWriteBytes, "CODESMITH_MAX_WRITE_BYTES")

	setString(&cfg.Tools.TestRunner, "CODESMITH_TEST_RUNNER")
	setDuration(&cfg.Tools.TestTimeout, "CODESMITH_TEST_TIMEOUT")
	setDuration(&cfg.Tools.CommandTimeout, "CODESMITH_COMMAND_TIMEOUT")
	setInt(&cfg.Tools.SearchLimit, "CODESMITH_SEARCH_LIMIT")
	setBool(&cfg.Tools.CacheEnabled, "CODESMITH_CACHE_ENABLED")
	setInt64(&cfg.Tools.CacheMaxBytes, "CODESMITH_CACHE_MAX_BYTES")
	setDuration(&cfg.Tools.CacheTTL, "CODESMITH_CACHE_TTL")

	setString(&cfg.Workspace.SessionBase, "CODESMITH_SESSION_BASE")
	setDuration(&cfg.Workspace.SessionTTL, "CODESMITH_SESSION_TTL")
	setDuration(&cfg.Workspace.JanitorInterval, "CODESMITH_JANITOR_INTERVAL")
}

// validate checks that required fields are set and budgets make sense.
func validate(cfg *Config) error {
	if cfg.Store.Driver != "memory" && cfg.Store.Driver != "postgres" {
		return fmt.Errorf("store.driver %q: must be memory or postgres", cfg.Store.Driver)
	}
	if cfg.Store.Driver == "postgres" {
		if cfg.Store.Postgres.DSN == "" {
			return errors.New("store.postgres.dsn is required")
		}
		if cfg.Store.Postgres.MaxConns < 1 {
			return errors.New("store.postgres.max_conns must be >= 1")
		}
	}
	if cfg.Decision.BaseURL == "" {
		return errors.New("decision.base_url is required")
	}
	if cfg.Decision.Model == "" {
		return errors.New("decision.model is required")
	}
	if cfg.Orchestrator.MaxIterations < 1 {
		return errors.New("orchestrator.max_iterations must be >= 1")
	}
	if cfg.Orchestrator.MaxConsecutiveFailures < 1 {
		return errors.New("orchestrator.max_consecutive_failures must be >= 1")
	}
	if cfg.Memory.MaxMessages < 2 {
		return errors.New("memory.max_messages must be >= 2")
	}
	if cfg.Security.MaxReadBytes < 1 || cfg.Security.MaxWriteBytes < 1 {
		return errors.New("security size limits must be >= 1")
	}
	if cfg.Tools.SearchLimit < 1 {
		return errors.New("tools.search_limit must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
