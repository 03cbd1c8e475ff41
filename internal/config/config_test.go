package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsYAMLAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  port: "9000"
  allowed_origins: ["http://localhost:3000"]
redis:
  addr: "localhost:6379"
session:
  ttl: "30m"
  require_uuid: true
sparql:
  endpoint: "http://sparql.local"
  max_offset: 50
generator:
  fallback: true
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("PORT", "9100")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9100" {
		t.Fatalf("expected env port override, got %q", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Sparql.Endpoint != "http://sparql.local" || cfg.Sparql.MaxOffset != 50 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !cfg.Session.RequireUUID || !cfg.Generator.Fallback {
		t.Fatalf("expected boolean flags to be set")
	}
	if TTLDuration(cfg.Session.TTL, time.Hour) != 30*time.Minute {
		t.Fatalf("unexpected session ttl %q", cfg.Session.TTL)
	}
}

func TestLoadMissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/trivia")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Postgres.URL != "postgres://localhost/trivia" {
		t.Fatalf("expected env database url, got %q", cfg.Postgres.URL)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("bogus", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for bad input, got %v", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
}
