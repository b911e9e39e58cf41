package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mikey/inbox-triage/internal/core"
	"github.com/valkey-io/valkey-go"
	"go.uber.org/zap"
)

const valkeyKeyPrefix = "triage:analysis:"

// ValkeyCache stores one key per thread in Valkey or Redis
type ValkeyCache struct {
	client valkey.Client
	logger *zap.Logger
}

// NewValkeyCache connects to the Valkey server at address
func NewValkeyCache(address string, logger *zap.Logger) (*ValkeyCache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{address},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	logger.Info("Connected to valkey cache", zap.String("address", address))
	return NewValkeyCacheWithClient(client, logger), nil
}

// NewValkeyCacheWithClient wraps an existing client
func NewValkeyCacheWithClient(client valkey.Client, logger *zap.Logger) *ValkeyCache {
	return &ValkeyCache{client: client, logger: logger}
}

func (c *ValkeyCache) key(threadID string) string {
	return valkeyKeyPrefix + threadID
}

// Get retrieves the entry for a thread
func (c *ValkeyCache) Get(ctx context.Context, threadID string) (*core.CacheEntry, error) {
	raw, err := c.client.Do(ctx, c.client.B().Get().Key(c.key(threadID)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, core.ErrCacheMiss
		}
		return nil, &core.StorageError{Op: "get", Key: threadID, Err: err}
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, &core.StorageError{Op: "get", Key: threadID, Err: err}
	}
	entry, err := rec.entry()
	if err != nil {
		return nil, &core.StorageError{Op: "get", Key: threadID, Err: err}
	}
	return entry, nil
}

// Set stores an entry without expiry; freshness is judged by the reader
func (c *ValkeyCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	rec, err := newRecord(entry)
	if err != nil {
		return &core.StorageError{Op: "set", Key: entry.Key, Err: err}
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return &core.StorageError{Op: "set", Key: entry.Key, Err: err}
	}

	cmd := c.client.B().Set().Key(c.key(entry.Key)).Value(string(payload)).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return &core.StorageError{Op: "set", Key: entry.Key, Err: err}
	}
	return nil
}

// Delete removes an entry
func (c *ValkeyCache) Delete(ctx context.Context, threadID string) error {
	if err := c.client.Do(ctx, c.client.B().Del().Key(c.key(threadID)).Build()).Error(); err != nil {
		return &core.StorageError{Op: "delete", Key: threadID, Err: err}
	}
	return nil
}

// Close closes the client
func (c *ValkeyCache) Close() error {
	c.client.Close()
	return nil
}
