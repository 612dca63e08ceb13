package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lta97/junkpool/internal/core/domain"
)

const (
	idempotencyKeyTTL = 24 * time.Hour

	// DefaultEventChannel is where notifications are published for
	// external indexers and UIs.
	DefaultEventChannel = "junkpool:events"
)

type RedisAdapter struct {
	client  *redis.Client
	channel string
}

func NewRedisAdapter(client *redis.Client, channel string) *RedisAdapter {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &RedisAdapter{client: client, channel: channel}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) PublishEvent(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return r.client.Publish(ctx, r.channel, body).Err()
}
