package infra

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestNewRedisClientAndHealth(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}

	ctx := context.Background()
	client, err := NewRedisClient(ctx, "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("new redis client: %v", err)
	}
	defer client.Close()

	status := Health(ctx, nil, client)
	if status["redis"] != "ok" {
		t.Fatalf("expected redis ok, got %q", status["redis"])
	}
	if status["postgres"] != "disabled" {
		t.Fatalf("expected postgres disabled, got %q", status["postgres"])
	}

	mr.Close()
	status = Health(ctx, nil, client)
	if status["redis"] == "ok" {
		t.Fatalf("expected redis failure after shutdown")
	}
}

func TestNewRedisClientRequiresURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	body, err := migrations.ReadFile("migrations/0001_wallet_ledger.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if len(body) == 0 {
		t.Fatalf("migration is empty")
	}
}
