// Package cache wraps the Redis client used for short-lived view caching.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates a new Redis client.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// View caches JSON-encoded view models with a fixed TTL. A nil *View is
// valid and behaves as a permanent cache miss, so callers degrade to
// direct computation when Redis is unavailable.
type View struct {
	client *redis.Client
	ttl    time.Duration
}

// NewView constructs a View cache.
func NewView(client *redis.Client, ttl time.Duration) *View {
	if client == nil {
		return nil
	}
	return &View{client: client, ttl: ttl}
}

// Get loads the cached value under key into target. The second return
// reports whether the key was present and decoded.
func (v *View) Get(ctx context.Context, key string, target any) (bool, error) {
	if v == nil {
		return false, nil
	}
	data, err := v.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("platform/cache: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, fmt.Errorf("platform/cache: decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key for the configured TTL.
func (v *View) Set(ctx context.Context, key string, value any) error {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("platform/cache: encode %s: %w", key, err)
	}
	if err := v.client.Set(ctx, key, data, v.ttl).Err(); err != nil {
		return fmt.Errorf("platform/cache: set %s: %w", key, err)
	}
	return nil
}
