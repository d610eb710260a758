package featgen

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache is the interface for caching generation results.
// Users may implement it with their preferred caching solution
// (e.g., Redis, Memcached); NewMemoryCache returns an in-process one.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies a generation request.
type CacheKey struct {
	Task string
	Mode string
	// Catalog is the version of the model catalog the request ran against.
	Catalog uint64
	// Request is the canonical encoding of the answers or constraints.
	Request string
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%s:%d:%s", k.Task, k.Mode, k.Catalog, k.Request)
}

// MemoryCache is a size-bounded in-process Cache.
type MemoryCache struct {
	c *ristretto.Cache[string, []byte]
}

// NewMemoryCache returns a cache holding at most maxBytes of values.
func NewMemoryCache(maxBytes int64) (*MemoryCache, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("featgen: cache size must be positive, got %d", maxBytes)
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(10*(maxBytes/1024), 1000),
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("featgen: cache: %w", err)
	}
	return &MemoryCache{c: c}, nil
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, nil
	}
	return v, nil
}

// Set admits the value asynchronously; a following Get may still miss.
func (m *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.c.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.c.Del(key)
	return nil
}

func (m *MemoryCache) Clear(context.Context) error {
	m.c.Clear()
	return nil
}

// Wait blocks until pending writes are applied.
func (m *MemoryCache) Wait() {
	m.c.Wait()
}

// Close stops the cache's background goroutines.
func (m *MemoryCache) Close() {
	m.c.Close()
}
