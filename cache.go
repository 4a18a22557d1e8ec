package stackgen

import (
	"context"
	"strings"
	"time"
)

// Cache is the interface for caching validation results at request time.
// Implementations may be in-process (see contrib/lrucache) or shared
// (e.g., Redis, Memcached).
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey joins a namespace and key parts into a cache key.
func CacheKey(namespace string, parts ...string) string {
	return namespace + ":" + strings.Join(parts, ":")
}
