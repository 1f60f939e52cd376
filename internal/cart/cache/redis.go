package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

func NewRedisSlot(client *redis.Client, baseTTL time.Duration) *RedisSlot {
	return &RedisSlot{
		client:  client,
		baseTTL: baseTTL,
	}
}

// RedisSlot keeps each cart under cart:<session>. A zero baseTTL keeps keys
// until they are deleted; otherwise up to five minutes of jitter is added.
type RedisSlot struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r *RedisSlot) Load(ctx context.Context, sessionID string) ([]byte, error) {
	data, err := r.client.Get(ctx, slotKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisSlot) Save(ctx context.Context, sessionID string, payload []byte) error {
	var ttl time.Duration
	if r.baseTTL > 0 {
		jitter := time.Duration(rand.Intn(5)) * time.Minute
		ttl = r.baseTTL + jitter
	}
	if err := r.client.Set(ctx, slotKey(sessionID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisSlot) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, slotKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
