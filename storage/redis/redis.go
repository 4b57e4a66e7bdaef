// Package redis provides a Redis-backed implementation of the storage.KV
// interface. Items carry their own lifecycle metadata alongside the Redis
// TTL so expiry can be re-checked on read.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/graphgate/graphgate/storage"
)

const scanBatchSize = 100

// Config contains configuration options for the Redis store.
type Config struct {
	// Client is the Redis client instance.
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys.
	// Default: "graphgate:".
	KeyPrefix string
}

// KV implements the storage.KV interface using Redis.
type KV struct {
	client    *redis.Client
	keyPrefix string
}

// storedItem is the JSON structure persisted in Redis.
type storedItem struct {
	Data      []byte     `json:"data"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// New creates a Redis-backed store.
func New(config Config) (*KV, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "graphgate:"
	}
	return &KV{
		client:    config.Client,
		keyPrefix: config.KeyPrefix,
	}, nil
}

// Get retrieves the item stored under key.
func (kv *KV) Get(ctx context.Context, key string) (*storage.Item, error) {
	redisKey := kv.keyPrefix + key

	result := kv.client.Get(ctx, redisKey)
	if result.Err() != nil {
		if result.Err() == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: get %s: %w", redisKey, result.Err())
	}

	var item storedItem
	if err := json.Unmarshal([]byte(result.Val()), &item); err != nil {
		return nil, fmt.Errorf("redis: unmarshal stored item: %w", err)
	}

	out := &storage.Item{
		Data:      item.Data,
		CreatedAt: item.CreatedAt,
		ExpiresAt: item.ExpiresAt,
	}

	// Redis TTL should have evicted this already; the recorded expiry is
	// authoritative when the two disagree.
	if out.IsExpired() {
		kv.client.Del(ctx, redisKey)
		return nil, nil
	}
	return out, nil
}

// Put stores data under key with an optional TTL.
func (kv *KV) Put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	redisKey := kv.keyPrefix + key

	now := time.Now()
	item := storedItem{
		Data:      data,
		CreatedAt: now,
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		item.ExpiresAt = &expiresAt
	}

	itemData, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("redis: marshal stored item: %w", err)
	}

	if err := kv.client.Set(ctx, redisKey, itemData, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", redisKey, err)
	}
	return nil
}

// Delete removes the key.
func (kv *KV) Delete(ctx context.Context, key string) error {
	redisKey := kv.keyPrefix + key
	if err := kv.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", redisKey, err)
	}
	return nil
}

// List returns one SCAN batch of keys sharing prefix. The cursor is the
// Redis SCAN cursor in decimal form.
func (kv *KV) List(ctx context.Context, prefix, cursor string) (*storage.Page, error) {
	var scanCursor uint64
	if cursor != "" {
		parsed, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis: invalid list cursor %q: %w", cursor, err)
		}
		scanCursor = parsed
	}

	pattern := kv.keyPrefix + prefix + "*"
	keys, next, err := kv.client.Scan(ctx, scanCursor, pattern, scanBatchSize).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: scan %s: %w", pattern, err)
	}

	page := &storage.Page{Keys: make([]string, 0, len(keys))}
	for _, key := range keys {
		page.Keys = append(page.Keys, key[len(kv.keyPrefix):])
	}
	if next != 0 {
		page.Cursor = strconv.FormatUint(next, 10)
	}
	return page, nil
}

// Close closes the underlying Redis client.
func (kv *KV) Close() error {
	return kv.client.Close()
}

// Compile-time interface check
var _ storage.KV = (*KV)(nil)
