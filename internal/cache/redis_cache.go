package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"uniformes/backend/internal/domain"
)

type RedisRestockCache struct {
	client *redis.Client
}

func NewRedisRestockCache(addr string, password string, db int) *RedisRestockCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisRestockCache{client: client}
}

func (c *RedisRestockCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisRestockCache) Close() error {
	return c.client.Close()
}

func (c *RedisRestockCache) Get(ctx context.Context, key string) ([]domain.RestockSuggestion, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var suggestions []domain.RestockSuggestion
	if err := json.Unmarshal([]byte(val), &suggestions); err != nil {
		return nil, false, err
	}
	return suggestions, true, nil
}

func (c *RedisRestockCache) Set(ctx context.Context, key string, value []domain.RestockSuggestion, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
