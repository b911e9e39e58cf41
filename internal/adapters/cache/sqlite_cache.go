package cache

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteCache is a SQLite implementation of the CacheRepository interface
type SQLiteCache struct {
	sqlCache
}

// NewSQLiteCache opens the database at dbPath and creates the table if needed
func NewSQLiteCache(dbPath string, logger *zap.Logger) (*SQLiteCache, error) {
	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ` + tableName + ` (
			thread_id TEXT PRIMARY KEY,
			result TEXT NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			ttl_ms INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	logger.Info("Opened SQLite cache", zap.String("path", dbPath))

	return &SQLiteCache{sqlCache{
		db: db,
		upsert: `INSERT OR REPLACE INTO ` + tableName + ` (thread_id, result, timestamp_ms, ttl_ms)
			VALUES (:thread_id, :result, :timestamp_ms, :ttl_ms)`,
		logger: logger,
	}}, nil
}
