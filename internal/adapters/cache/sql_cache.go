package cache

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/mikey/inbox-triage/internal/core"
	"go.uber.org/zap"
)

const tableName = "analysis_cache"

// sqlCache implements CacheRepository over any sqlx database. The dialects
// differ only in schema and upsert statement.
type sqlCache struct {
	db     *sqlx.DB
	upsert string
	logger *zap.Logger
}

func (c *sqlCache) Get(ctx context.Context, threadID string) (*core.CacheEntry, error) {
	var rec record
	err := c.db.GetContext(ctx, &rec, `
		SELECT thread_id, result, timestamp_ms, ttl_ms
		FROM `+tableName+`
		WHERE thread_id = ?
	`, threadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrCacheMiss
		}
		return nil, &core.StorageError{Op: "get", Key: threadID, Err: err}
	}

	entry, err := rec.entry()
	if err != nil {
		return nil, &core.StorageError{Op: "get", Key: threadID, Err: err}
	}
	return entry, nil
}

func (c *sqlCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	rec, err := newRecord(entry)
	if err != nil {
		return &core.StorageError{Op: "set", Key: entry.Key, Err: err}
	}

	if _, err := c.db.NamedExecContext(ctx, c.upsert, rec); err != nil {
		return &core.StorageError{Op: "set", Key: entry.Key, Err: err}
	}
	return nil
}

func (c *sqlCache) Delete(ctx context.Context, threadID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM `+tableName+` WHERE thread_id = ?`, threadID)
	if err != nil {
		return &core.StorageError{Op: "delete", Key: threadID, Err: err}
	}
	return nil
}

// Close closes the database connection
func (c *sqlCache) Close() error {
	return c.db.Close()
}
