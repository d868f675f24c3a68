// Package store defines the key-value tier store contract of the response
// cache and an in-memory implementation. Remote backends live in the
// top-level store/ subpackages (dynamodb, s3, minio).
package store

import (
	"context"
	"errors"

	"github.com/hupe1980/ragkit/model"
)

// ErrNotFound is returned when a key has no entry.
var ErrNotFound = errors.New("entry not found")

// Store is one cache tier's persistence handle.
//
// Implementations must be safe for concurrent use. Get must not return
// expired entries; whether expired entries are lazily deleted or swept is an
// implementation detail.
type Store interface {
	// Get returns the entry for key, ErrNotFound if absent or expired.
	Get(ctx context.Context, key string) (*model.CacheEntry, error)
	// Set writes the entry under entry.Key, honoring entry.ExpiresAt.
	Set(ctx context.Context, entry *model.CacheEntry) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists all live keys. Used by pattern invalidation.
	Keys(ctx context.Context) ([]string, error)
	// Close releases any resources (background sweepers, clients).
	Close() error
}
