package config

import (
	"testing"
	"time"
)

func TestFromEnvDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("REFRESH_SECRET", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.JWTSecret == "" || cfg.RefreshSecret == "" {
		t.Fatalf("expected development secrets to be filled in")
	}
	if cfg.UnitTimeout != defaultUnitTimeout {
		t.Fatalf("expected default unit timeout, got %s", cfg.UnitTimeout)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
}

func TestFromEnvProductionRequiresBackends(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("JWT_SECRET", "a")
	t.Setenv("REFRESH_SECRET", "b")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected missing DATABASE_URL to fail")
	}
}

func TestFromEnvParsesDurations(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("IDEMPOTENCY_TTL_SECONDS", "60")
	t.Setenv("LOCK_TIMEOUT", "250ms")
	t.Setenv("LOGIN_RATE_LIMIT", "3")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.IdempotencyTTL != time.Minute {
		t.Fatalf("expected 1m idempotency ttl, got %s", cfg.IdempotencyTTL)
	}
	if cfg.LockTimeout != 250*time.Millisecond {
		t.Fatalf("expected 250ms lock timeout, got %s", cfg.LockTimeout)
	}
	if cfg.LoginRateLimit != 3 {
		t.Fatalf("expected login rate limit 3, got %d", cfg.LoginRateLimit)
	}

	t.Setenv("UNIT_TIMEOUT", "soon")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected invalid UNIT_TIMEOUT to fail")
	}
}
