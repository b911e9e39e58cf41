package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AnalysisCache wraps a CacheRepository with TTL-based freshness
type AnalysisCache struct {
	repo CacheRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewAnalysisCache creates a new analysis cache. A nil clock uses time.Now.
func NewAnalysisCache(repo CacheRepository, ttl time.Duration, now func() time.Time) *AnalysisCache {
	if now == nil {
		now = time.Now
	}
	return &AnalysisCache{repo: repo, ttl: ttl, now: now}
}

// Get returns the stored entry for a thread and whether it is still fresh.
// A missing entry is not an error.
func (c *AnalysisCache) Get(ctx context.Context, threadID string) (*CacheEntry, bool, error) {
	entry, err := c.repo.Get(ctx, threadID)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return entry, IsFresh(entry, c.now()), nil
}

// Put upserts the result for a thread, stamped with the current time
func (c *AnalysisCache) Put(ctx context.Context, threadID string, result ClassificationResult) error {
	entry := &CacheEntry{
		Key:       threadID,
		Result:    result,
		Timestamp: c.now(),
		TTL:       c.ttl,
	}
	if err := c.repo.Set(ctx, entry); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Delete removes the entry for a thread
func (c *AnalysisCache) Delete(ctx context.Context, threadID string) error {
	if err := c.repo.Delete(ctx, threadID); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}
