package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rentescrow/internal/config"
	"rentescrow/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisCacheRepository caches resolved listings and rate-limit counters in Redis.
type RedisCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisCacheRepository(client *redis.Client, ttl time.Duration) *RedisCacheRepository {
	return &RedisCacheRepository{
		client: client,
		ttl:    ttl,
	}
}

func listingKey(listingType string, id int64) string {
	return fmt.Sprintf("listing:%s:%d", listingType, id)
}

// GetListing returns nil, nil on a cache miss.
func (r *RedisCacheRepository) GetListing(ctx context.Context, listingType string, id int64) (*models.ResolvedListing, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, listingKey(listingType, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing from redis: %w", err)
	}

	var listing models.ResolvedListing
	if err := json.Unmarshal(val, &listing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal listing: %w", err)
	}
	return &listing, nil
}

func (r *RedisCacheRepository) SetListing(ctx context.Context, listing *models.ResolvedListing) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("failed to marshal listing: %w", err)
	}
	if err := r.client.Set(ctx, listingKey(listing.Type, listing.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set listing in redis: %w", err)
	}
	return nil
}

func (r *RedisCacheRepository) InvalidateListing(ctx context.Context, listingType string, id int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, listingKey(listingType, id)).Err(); err != nil {
		return fmt.Errorf("failed to delete listing from redis: %w", err)
	}
	return nil
}

// CheckRateLimit counts hits on key within a fixed window.
func (r *RedisCacheRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	redisKey := "rate_limit:" + key

	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
