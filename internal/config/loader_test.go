package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromDefaultsOnly(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("Store.Driver = %q, want memory", cfg.Store.Driver)
	}
	if cfg.Orchestrator.MaxIterations != 20 {
		t.Errorf("MaxIterations = %d, want 20", cfg.Orchestrator.MaxIterations)
	}
	if cfg.Orchestrator.MaxConsecutiveFailures != 3 {
		t.Errorf("MaxConsecutiveFailures = %d, want 3", cfg.Orchestrator.MaxConsecutiveFailures)
	}
	if cfg.Decision.Model == "" {
		t.Error("Decision.Model should have a default")
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codesmith.yaml")

	yaml := `
logging:
  level: debug
orchestrator:
  max_iterations: 5
decision:
  model: test-model
tools:
  search_limit: 42
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Orchestrator.MaxIterations != 5 {
		t.Errorf("MaxIterations = %d, want 5", cfg.Orchestrator.MaxIterations)
	}
	if cfg.Decision.Model != "test-model" {
		t.Errorf("Decision.Model = %q, want test-model", cfg.Decision.Model)
	}
	if cfg.Tools.SearchLimit != 42 {
		t.Errorf("Tools.SearchLimit = %d, want 42", cfg.Tools.SearchLimit)
	}
	// Untouched sections keep defaults.
	if cfg.Orchestrator.MaxConsecutiveFailures != 3 {
		t.Errorf("MaxConsecutiveFailures = %d, want default 3", cfg.Orchestrator.MaxConsecutiveFailures)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codesmith.yaml")

	yaml := `
orchestrator:
  max_iterations: 5
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	t.Setenv("CODESMITH_MAX_ITERATIONS", "7")
	t.Setenv("CODESMITH_LOG_LEVEL", "warn")
	t.Setenv("CODESMITH_DECISION_TIMEOUT", "90s")
	t.Setenv("CODESMITH_CACHE_ENABLED", "false")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Orchestrator.MaxIterations != 7 {
		t.Errorf("MaxIterations = %d, want env override 7", cfg.Orchestrator.MaxIterations)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Decision.RequestTimeout != 90*time.Second {
		t.Errorf("RequestTimeout = %v, want 90s", cfg.Decision.RequestTimeout)
	}
	if cfg.Tools.CacheEnabled {
		t.Error("Tools.CacheEnabled = true, want env override false")
	}
}

func TestEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("CODESMITH_MAX_ITERATIONS", "not-a-number")
	t.Setenv("CODESMITH_DECISION_TIMEOUT", "soon")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Orchestrator.MaxIterations != 20 {
		t.Errorf("MaxIterations = %d, want default 20 for unparseable env", cfg.Orchestrator.MaxIterations)
	}
	if cfg.Decision.RequestTimeout != 120*time.Second {
		t.Errorf("RequestTimeout = %v, want default 120s", cfg.Decision.RequestTimeout)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "sqlite" }},
		{"postgres without dsn", func(c *Config) {
			c.Store.Driver = "postgres"
			c.Store.Postgres.DSN = ""
		}},
		{"empty decision url", func(c *Config) { c.Decision.BaseURL = "" }},
		{"empty model", func(c *Config) { c.Decision.Model = "" }},
		{"zero iterations", func(c *Config) { c.Orchestrator.MaxIterations = 0 }},
		{"zero failure budget", func(c *Config) { c.Orchestrator.MaxConsecutiveFailures = 0 }},
		{"memory too small", func(c *Config) { c.Memory.MaxMessages = 1 }},
		{"zero read limit", func(c *Config) { c.Security.MaxReadBytes = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			if err := validate(&cfg); err == nil {
				t.Error("validate() = nil, want error")
			}
		})
	}
}

func TestLoadFromMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codesmith.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: [broken"), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom() = nil error for malformed yaml, want error")
	}
}

func TestSecurityPolicyMerge(t *testing.T) {
	cfg := Defaults()
	cfg.Security.AllowedCommands = []string{"go"}
	cfg.Security.MaxReadBytes = 2048

	p := cfg.Security.Policy()
	if len(p.AllowedCommands) != 1 || p.AllowedCommands[0] != "go" {
		t.Errorf("AllowedCommands = %v, want [go]", p.AllowedCommands)
	}
	if p.MaxReadBytes != 2048 {
		t.Errorf("MaxReadBytes = %d, want 2048", p.MaxReadBytes)
	}
	// Unset list fields fall back to built-in defaults.
	if len(p.DangerousPatterns) == 0 {
		t.Error("DangerousPatterns should fall back to defaults")
	}
}
