// Package memory provides an in-memory implementation of the storage.KV
// interface backed by github.com/hashicorp/golang-lru/v2, suitable for
// development and tests. Expired items are dropped lazily on read and by a
// periodic sweep.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/graphgate/graphgate/storage"
)

const listPageSize = 100

// KV implements storage.KV in process memory.
type KV struct {
	mu    sync.RWMutex
	cache *lru.Cache[string, *storage.Item]
	done  chan struct{}
}

// DefaultMaxItems bounds the in-memory store when the caller has no better
// number.
const DefaultMaxItems = 65536

// New creates an in-memory store holding at most maxItems entries.
func New(maxItems int) (*KV, error) {
	cache, err := lru.New[string, *storage.Item](maxItems)
	if err != nil {
		return nil, fmt.Errorf("memory: create LRU cache: %w", err)
	}

	kv := &KV{
		cache: cache,
		done:  make(chan struct{}),
	}
	go kv.sweepExpired()
	return kv, nil
}

// Get retrieves the item stored under key, dropping it if expired.
func (kv *KV) Get(_ context.Context, key string) (*storage.Item, error) {
	kv.mu.RLock()
	item, exists := kv.cache.Get(key)
	kv.mu.RUnlock()

	if !exists {
		return nil, nil
	}
	if item.IsExpired() {
		kv.mu.Lock()
		kv.cache.Remove(key)
		kv.mu.Unlock()
		return nil, nil
	}
	return item, nil
}

// Put stores data under key. A zero ttl means no expiration.
func (kv *KV) Put(_ context.Context, key string, data []byte, ttl time.Duration) error {
	now := time.Now()
	item := &storage.Item{
		Data:      make([]byte, len(data)),
		CreatedAt: now,
	}
	copy(item.Data, data)
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		item.ExpiresAt = &expiresAt
	}

	kv.mu.Lock()
	kv.cache.Add(key, item)
	kv.mu.Unlock()
	return nil
}

// Delete removes the key.
func (kv *KV) Delete(_ context.Context, key string) error {
	kv.mu.Lock()
	kv.cache.Remove(key)
	kv.mu.Unlock()
	return nil
}

// List returns a page of keys sharing prefix. The cursor is the last key of
// the previous page; keys are served in lexicographic order so paging is
// stable under concurrent writes.
func (kv *KV) List(_ context.Context, prefix, cursor string) (*storage.Page, error) {
	kv.mu.RLock()
	all := kv.cache.Keys()
	kv.mu.RUnlock()

	matched := make([]string, 0, len(all))
	for _, key := range all {
		if strings.HasPrefix(key, prefix) && key > cursor {
			matched = append(matched, key)
		}
	}
	sort.Strings(matched)

	page := &storage.Page{}
	if len(matched) > listPageSize {
		page.Keys = matched[:listPageSize]
		page.Cursor = matched[listPageSize-1]
	} else {
		page.Keys = matched
	}
	return page, nil
}

// Close stops the background sweep and drops all entries.
func (kv *KV) Close() error {
	close(kv.done)
	kv.mu.Lock()
	kv.cache.Purge()
	kv.mu.Unlock()
	return nil
}

// sweepExpired periodically removes expired items so the cache does not
// fill with dead sessions between reads.
func (kv *KV) sweepExpired() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-kv.done:
			return
		case <-ticker.C:
		}

		kv.mu.Lock()
		now := time.Now()
		for _, key := range kv.cache.Keys() {
			if item, exists := kv.cache.Peek(key); exists {
				if item.ExpiresAt != nil && now.After(*item.ExpiresAt) {
					kv.cache.Remove(key)
				}
			}
		}
		kv.mu.Unlock()
	}
}

// Compile-time interface check
var _ storage.KV = (*KV)(nil)
