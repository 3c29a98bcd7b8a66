// Package kv implements the key-value backend adapter: a thin go-redis
// wrapper exposing get/set/set-with-ttl/exists/del to the host bridge. It
// mirrors original_source/booster/src/redis.rs's RedisHost, translated onto
// go-redis/v8's connection-pooled client instead of bb8-redis.
package kv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/oriys/booster/internal/config"
)

// ErrDisabled is returned by every Adapter method when no REDIS_URL was
// configured.
var ErrDisabled = fmt.Errorf("kv adapter is disabled: no REDIS_URL configured")

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = fmt.Errorf("key not found")

// Adapter wraps an optional *redis.Client. A nil client means the adapter
// is disabled.
type Adapter struct {
	client *redis.Client
}

// NewFromConfig builds the adapter from config.RedisConfig. A bare
// "host:port" value is prefixed with "redis://" before parsing, matching
// the original adapter's tolerance for a schemeless REDIS_URL.
func NewFromConfig(ctx context.Context, cfg config.RedisConfig) (*Adapter, error) {
	if cfg.URL == "" {
		return &Adapter{}, nil
	}

	url := cfg.URL
	if !strings.Contains(url, "://") {
		url = "redis://" + url
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.PoolMax > 0 {
		opts.PoolSize = cfg.PoolMax
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Adapter{client: client}, nil
}

// Enabled reports whether a REDIS_URL was configured.
func (a *Adapter) Enabled() bool {
	return a.client != nil
}

// Close releases the client, if any.
func (a *Adapter) Close() {
	if a.client != nil {
		a.client.Close()
	}
}

// Get returns the raw bytes stored at key, or ErrNotFound if absent.
func (a *Adapter) Get(ctx context.Context, key string) ([]byte, error) {
	if a.client == nil {
		return nil, ErrDisabled
	}
	val, err := a.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores val at key with no expiration.
func (a *Adapter) Set(ctx context.Context, key string, val []byte) error {
	if a.client == nil {
		return ErrDisabled
	}
	return a.client.Set(ctx, key, val, 0).Err()
}

// SetWithTTL stores val at key, expiring after ttl. ttl of zero means no
// expiration, matching Set.
func (a *Adapter) SetWithTTL(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if a.client == nil {
		return ErrDisabled
	}
	return a.client.Set(ctx, key, val, ttl).Err()
}

// Exists reports whether key is present.
func (a *Adapter) Exists(ctx context.Context, key string) (bool, error) {
	if a.client == nil {
		return false, ErrDisabled
	}
	n, err := a.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Del removes key and returns the number of keys removed (0 or 1).
func (a *Adapter) Del(ctx context.Context, key string) (int64, error) {
	if a.client == nil {
		return 0, ErrDisabled
	}
	return a.client.Del(ctx, key).Result()
}
