package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tendant/simple-mirror/pkg/simplemirror"
)

// Cache is an in-memory implementation of simplemirror.CacheStore
type Cache struct {
	mu      sync.RWMutex
	entries map[string]simplemirror.CacheEntry
}

var _ simplemirror.CacheStore = (*Cache)(nil)

// New creates an empty in-memory cache
func New() *Cache {
	return &Cache{entries: make(map[string]simplemirror.CacheEntry)}
}

func (c *Cache) Lookup(ctx context.Context, oldURL string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[oldURL]
	if !ok {
		return "", simplemirror.ErrCacheMiss
	}
	return entry.NewURL, nil
}

// Insert keeps the first mapping recorded for oldURL
func (c *Cache) Insert(ctx context.Context, oldURL, newURL string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[oldURL]; exists {
		return nil
	}
	c.entries[oldURL] = simplemirror.CacheEntry{
		OldURL:    oldURL,
		NewURL:    newURL,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// Len returns the number of entries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
