package infra

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient configures a Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health reports the reachability of each configured backend. Nil backends
// are reported as "disabled".
func Health(ctx context.Context, db Pinger, cache *redis.Client) map[string]string {
	status := map[string]string{"postgres": "disabled", "redis": "disabled"}
	if db != nil {
		status["postgres"] = "ok"
		if err := db.Ping(ctx); err != nil {
			status["postgres"] = err.Error()
		}
	}
	if cache != nil {
		status["redis"] = "ok"
		if err := cache.Ping(ctx).Err(); err != nil {
			status["redis"] = err.Error()
		}
	}
	return status
}
