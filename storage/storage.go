// Package storage defines the key-value contract that holds all
// cross-request state: sessions, rate-limit windows, and cached schema
// descriptions. Request handlers keep no in-process state between requests;
// everything durable goes through this interface with read-then-write
// semantics.
package storage

import (
	"context"
	"time"
)

// KV is the key-value store contract consumed by the request pipeline.
type KV interface {
	// Get retrieves the item stored under key. It returns (nil, nil) when
	// the key does not exist or has expired; errors are reserved for
	// storage system failures.
	Get(ctx context.Context, key string) (*Item, error)

	// Put stores data under key. A zero ttl means no expiration.
	Put(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns a page of keys sharing prefix, starting after the
	// opaque cursor from a previous page. An empty returned cursor means
	// the listing is complete.
	List(ctx context.Context, prefix, cursor string) (*Page, error)

	// Close releases backend resources.
	Close() error
}

// Item is a stored value with its lifecycle metadata.
type Item struct {
	Data      []byte
	CreatedAt time.Time
	ExpiresAt *time.Time // nil = no expiration
}

// IsExpired checks if the item has expired.
func (it *Item) IsExpired() bool {
	return it.ExpiresAt != nil && time.Now().After(*it.ExpiresAt)
}

// Page is one page of a prefix listing.
type Page struct {
	Keys   []string
	Cursor string // empty when no further pages exist
}
