package cache

import (
	"context"
	"fmt"
	"time"

	"app/internal/config"

	"github.com/redis/go-redis/v9"
)

// eventKeyTTL bounds how long processed webhook event ids are remembered.
// Stripe redelivers for up to 3 days.
const eventKeyTTL = 72 * time.Hour

// EventDeduper remembers processed webhook event ids so redelivered events
// are skipped instead of re-applied.
type EventDeduper interface {
	// ClaimEvent returns true if this is the first time the event id is seen.
	ClaimEvent(ctx context.Context, eventID string) (bool, error)
}

// RedisClient wraps a Redis connection for idempotency keys.
type RedisClient struct {
	rdb *redis.Client
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{rdb: rdb}, nil
}

func (r *RedisClient) ClaimEvent(ctx context.Context, eventID string) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, "stripe_event:"+eventID, 1, eventKeyTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim webhook event %s: %w", eventID, err)
	}
	return ok, nil
}

func (r *RedisClient) Close() error {
	return r.rdb.Close()
}
