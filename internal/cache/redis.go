package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces screener keys in a shared Redis.
const DefaultKeyPrefix = "pmcc:"

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// Ensure RedisCache implements Cache at compile time.
var _ Cache = (*RedisCache)(nil)

// NewRedisCache connects to the Redis server at url (redis://host:port/db)
// and verifies the connection.
func NewRedisCache(ctx context.Context, url, prefix string) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisCache{client: client, prefix: prefix}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
