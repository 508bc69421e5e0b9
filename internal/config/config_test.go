package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

// TestLoad_withSourcesSection verifies env expansion in the main file and the
// sources section hydrated relative to it.
func TestLoad_withSourcesSection(t *testing.T) {
	t.Setenv("NO_DOTENV", "1")
	t.Setenv("APYSCOPE_TEST_DSN", "postgres://u:p@localhost:5432/apyscope?sslmode=disable")
	t.Setenv("APYSCOPE_TEST_ENDPOINT", "http://graph.local/{source}")
	t.Setenv("APYSCOPE_TEST_TIMEOUT", "7s")

	dir := t.TempDir()
	writeFile(t, dir, "sources.yaml", `
endpoint: ${APYSCOPE_TEST_ENDPOINT}
sources: [aave-v2-ethereum]
timeout: ${APYSCOPE_TEST_TIMEOUT}
`)
	main := writeFile(t, dir, "apyscope.yaml", `
Name: apyscope
Host: 127.0.0.1
Port: 8888
Env: dev
Postgres:
  DSN: ${APYSCOPE_TEST_DSN}
TTL:
  Markets: 60
Sources:
  File: sources.yaml
`)

	cfg, err := Load(main)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Postgres.DSN != "postgres://u:p@localhost:5432/apyscope?sslmode=disable" {
		t.Fatalf("Postgres.DSN not expanded, got %q", cfg.Postgres.DSN)
	}
	if cfg.TTL.Markets != 60 || cfg.TTL.Rates != 86400 {
		t.Fatalf("TTL defaults not applied, got %+v", cfg.TTL)
	}
	if cfg.Parallelism != 1 {
		t.Fatalf("Parallelism default = %d", cfg.Parallelism)
	}
	if !cfg.Sources.Configured() {
		t.Fatalf("Sources section not hydrated")
	}
	src := cfg.SourcesConfig()
	if src.Endpoint != "http://graph.local/{source}" {
		t.Fatalf("Sources endpoint not expanded, got %q", src.Endpoint)
	}
	if src.Timeout != 7*time.Second {
		t.Fatalf("Sources timeout = %s", src.Timeout)
	}
	if cfg.BaseDir() != dir {
		t.Fatalf("BaseDir = %s, want %s", cfg.BaseDir(), dir)
	}
	if cfg.RedisConfigured() {
		t.Fatalf("Redis should not be configured")
	}
}

func TestSourcesConfig_defaults(t *testing.T) {
	cfg := &Config{}
	src := cfg.SourcesConfig()
	if len(src.Sources) != 8 {
		t.Fatalf("expected every known source, got %v", src.Sources)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{Env: "staging"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected env validation error")
	}
	cfg = &Config{Parallelism: -1}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected parallelism validation error")
	}
	cfg = &Config{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Env != "test" || !cfg.IsTestEnv() {
		t.Fatalf("Env default = %q", cfg.Env)
	}
}

func TestDefaultPath(t *testing.T) {
	p := DefaultPath()
	if filepath.Base(p) != "apyscope.yaml" {
		t.Fatalf("DefaultPath = %s", p)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("default config missing: %v", err)
	}
}
