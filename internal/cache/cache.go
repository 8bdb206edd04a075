// Package cache provides the key-value store backing the layer registry.
package cache

import (
	"context"
	"errors"
	"time"
)

// NoExpiration keeps an entry until it is deleted explicitly
const NoExpiration time.Duration = 0

// Cache defines the interface for all cache backends
type Cache interface {
	// Get retrieves a value from the cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache. A ttl of NoExpiration keeps the
	// value until it is deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache
	Delete(ctx context.Context, key string) error

	// SetMany stores every entry with the same ttl. Backends that support
	// it apply the batch atomically.
	SetMany(ctx context.Context, entries map[string][]byte, ttl time.Duration) error

	// DeleteMany removes every key; missing keys are ignored
	DeleteMany(ctx context.Context, keys ...string) error

	// Exists checks if a key exists in the cache
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases backend resources
	Close() error
}

// CacheConfig holds common configuration for cache backends
type CacheConfig struct {
	// Prefix is prepended to all cache keys
	Prefix string
}

// DefaultCacheConfig returns a default cache configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Prefix: "catalog:",
	}
}

// ErrCacheMiss is returned when a key is not found in the cache
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	var miss ErrCacheMiss
	return errors.As(err, &miss)
}
