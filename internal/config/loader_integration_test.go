package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Integration tests that exercise the full LoadFrom pipeline:
// defaults < YAML < environment variables.

func TestLoadFrom_FullHierarchy(t *testing.T) {
	// YAML sets max_iterations=9, env overrides to 7. Env must win.
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
orchestrator:
  max_iterations: 9
logging:
  level: "debug"
decision:
  model: "yaml-model"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CODESMITH_MAX_ITERATIONS", "7")
	t.Setenv("CODESMITH_LOG_LEVEL", "warn")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Orchestrator.MaxIterations != 7 {
		t.Errorf("env should override YAML: got max_iterations %d, want 7", cfg.Orchestrator.MaxIterations)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env should override YAML: got level %q, want warn", cfg.Logging.Level)
	}
	// YAML values without an env override survive.
	if cfg.Decision.Model != "yaml-model" {
		t.Errorf("got model %q, want yaml-model", cfg.Decision.Model)
	}
}

func TestLoadFrom_PostgresEnvOverlay(t *testing.T) {
	t.Setenv("CODESMITH_STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/codesmith")
	t.Setenv("CODESMITH_PG_MAX_CONNS", "25")
	t.Setenv("CODESMITH_PG_MAX_CONN_LIFETIME", "2h")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Store.Driver != "postgres" {
		t.Errorf("got driver %q, want postgres", cfg.Store.Driver)
	}
	if cfg.Store.Postgres.DSN != "postgres://test:test@db:5432/codesmith" {
		t.Errorf("got dsn %q, want DATABASE_URL value", cfg.Store.Postgres.DSN)
	}
	if cfg.Store.Postgres.MaxConns != 25 {
		t.Errorf("got max_conns %d, want 25", cfg.Store.Postgres.MaxConns)
	}
	if cfg.Store.Postgres.MaxConnLifetime != 2*time.Hour {
		t.Errorf("got lifetime %v, want 2h", cfg.Store.Postgres.MaxConnLifetime)
	}
}

func TestLoadFrom_ValidationAfterOverride(t *testing.T) {
	// YAML alone is valid; the env overlay breaks it. Validation runs last
	// and must see the merged result.
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
orchestrator:
  max_iterations: 10
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CODESMITH_MAX_ITERATIONS", "0")

	if _, err := LoadFrom(yamlPath); err == nil {
		t.Fatal("expected validation error for zero iteration budget, got nil")
	}
}

func TestLoadFrom_SecurityOverlayReachesPolicy(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
security:
  allowed_commands: ["go", "make"]
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CODESMITH_MAX_READ_BYTES", "4096")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	p := cfg.Security.Policy()
	if len(p.AllowedCommands) != 2 || p.AllowedCommands[0] != "go" {
		t.Errorf("got allowed commands %v, want [go make]", p.AllowedCommands)
	}
	if p.MaxReadBytes != 4096 {
		t.Errorf("got max read bytes %d, want 4096", p.MaxReadBytes)
	}
	// List fields left empty fall back to the built-in defaults.
	if len(p.BlockedSegments) == 0 {
		t.Error("blocked segments should fall back to defaults")
	}
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
logging:
  service: "from-custom-file"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CODESMITH_CONFIG", yamlPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Service != "from-custom-file" {
		t.Errorf("got service %q, want from-custom-file", cfg.Logging.Service)
	}
}
