package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is absent.
var ErrMiss = errors.New("cache miss")

// RedisCache stores namespaced values in Redis. Every key is prefixed with
// the namespace so several harvesters can share one instance.
type RedisCache struct {
	client    *redis.Client
	namespace string
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(redisURL, namespace string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisCacheFromClient(client, namespace), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, namespace string) *RedisCache {
	return &RedisCache{client: client, namespace: namespace}
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Client returns the underlying Redis client
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// HealthCheck pings Redis to verify connection
func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Key returns the namespaced form of key.
func (rc *RedisCache) Key(key string) string {
	if rc.namespace == "" {
		return key
	}
	return rc.namespace + ":" + key
}

// Set stores a value with TTL. A zero TTL keeps the key until deleted.
func (rc *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return rc.client.Set(ctx, rc.Key(key), value, ttl).Err()
}

// Get retrieves a value by key, returning ErrMiss when it is absent.
func (rc *RedisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := rc.client.Get(ctx, rc.Key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

// SetJSON stores v encoded as JSON.
func (rc *RedisCache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return rc.Set(ctx, key, b, ttl)
}

// GetJSON decodes the JSON value at key into v.
func (rc *RedisCache) GetJSON(ctx context.Context, key string, v interface{}) error {
	s, err := rc.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (rc *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := rc.client.Exists(ctx, rc.Key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes keys
func (rc *RedisCache) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = rc.Key(k)
	}
	return rc.client.Del(ctx, full...).Err()
}
