package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.Mode != ModeDev || cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected defaults: mode=%s addr=%s", cfg.Mode, cfg.HTTPAddr)
	}
	if cfg.StoreDriver != "sqlite" || cfg.StoreQuotaBytes != 5*1024*1024 {
		t.Fatalf("unexpected store defaults: %s %d", cfg.StoreDriver, cfg.StoreQuotaBytes)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("dev mode should default to debug, got %s", cfg.LogLevel)
	}
	if cfg.TickInterval != time.Second || cfg.PersistTimeout != 3*time.Second {
		t.Fatalf("unexpected timing defaults: %v %v", cfg.TickInterval, cfg.PersistTimeout)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("unexpected cors origins %v", cfg.CORSOrigins)
	}
	if cfg.AdminPassHash != "" {
		t.Fatalf("admin login should be disabled by default")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("QUIZ_MODE", "prod")
	t.Setenv("QUIZ_STORE_DRIVER", "Redis")
	t.Setenv("QUIZ_QUIZ_TICK_INTERVAL", "250ms")
	t.Setenv("QUIZ_CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("QUIZ_QUIZ_PERSIST_TIMEOUT", "-1s")

	cfg := FromEnv()
	if cfg.Mode != ModeProd || cfg.LogLevel != "info" {
		t.Fatalf("prod mode should default to info, got %s/%s", cfg.Mode, cfg.LogLevel)
	}
	if cfg.StoreDriver != "redis" {
		t.Fatalf("driver should be lower-cased, got %s", cfg.StoreDriver)
	}
	if cfg.TickInterval != 250*time.Millisecond {
		t.Fatalf("tick interval = %v", cfg.TickInterval)
	}
	if cfg.PersistTimeout != 3*time.Second {
		t.Fatalf("non-positive timeout should fall back, got %v", cfg.PersistTimeout)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSOrigins)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.yaml")
	doc := "http_addr: \":9090\"\nstore:\n  driver: fs\n  base_path: /tmp/quiz\nlog:\n  level: warn\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, v, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if v.ConfigFileUsed() != path {
		t.Fatalf("config file not recorded")
	}
	if cfg.HTTPAddr != ":9090" || cfg.StoreDriver != "fs" || cfg.StoreBasePath != "/tmp/quiz" || cfg.LogLevel != "warn" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing file should be tolerated: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("defaults should apply, got %s", cfg.HTTPAddr)
	}
}
