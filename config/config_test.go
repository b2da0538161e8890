package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FADE_DURATION", "")
	cfg := Load()

	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected http addr %q", cfg.HTTPAddr)
	}
	if cfg.FadeDuration != 120*time.Millisecond {
		t.Fatalf("invalid duration should fall back to default, got %v", cfg.FadeDuration)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("unexpected db driver %q", cfg.DBDriver)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("TICK_RATE_LIMIT", "2.5")
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("PERSIST_DELAY", "2s")

	cfg := Load()

	if cfg.HTTPAddr != ":9999" || cfg.RedisDB != 3 || !cfg.MinioUseSSL {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.TickRateLimit != 2.5 {
		t.Fatalf("unexpected rate limit %v", cfg.TickRateLimit)
	}
	if cfg.DBDriver != "mysql" {
		t.Fatalf("driver should be lowercased, got %q", cfg.DBDriver)
	}
	if cfg.PersistDelay != 2*time.Second {
		t.Fatalf("unexpected persist delay %v", cfg.PersistDelay)
	}
}
