package cache

import (
	"context"
	"sync"

	"github.com/mikey/inbox-triage/internal/core"
	"go.uber.org/zap"
)

// MemoryCache is an in-memory implementation of the CacheRepository interface.
// Entries are copied in and out so callers never share state with the map.
type MemoryCache struct {
	entries map[string]core.CacheEntry
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(logger *zap.Logger) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]core.CacheEntry),
		logger:  logger,
	}
}

// Get retrieves the entry for a thread
func (c *MemoryCache) Get(ctx context.Context, threadID string) (*core.CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[threadID]
	if !ok {
		return nil, core.ErrCacheMiss
	}
	return &entry, nil
}

// Set stores an entry, replacing any previous one for the thread
func (c *MemoryCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[entry.Key] = *entry
	return nil
}

// Delete removes an entry
func (c *MemoryCache) Delete(ctx context.Context, threadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, threadID)
	c.logger.Debug("Deleted cache entry", zap.String("thread_id", threadID))
	return nil
}

// Len returns the number of stored entries
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close is a no-op for the memory cache
func (c *MemoryCache) Close() error {
	return nil
}
