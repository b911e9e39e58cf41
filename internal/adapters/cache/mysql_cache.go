package cache

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// MySQLCache is a MySQL implementation of the CacheRepository interface
type MySQLCache struct {
	sqlCache
}

// NewMySQLCache connects to dsn and creates the table if needed
func NewMySQLCache(dsn string, logger *zap.Logger) (*MySQLCache, error) {
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ` + tableName + ` (
			thread_id VARCHAR(255) PRIMARY KEY,
			result MEDIUMTEXT NOT NULL,
			timestamp_ms BIGINT NOT NULL,
			ttl_ms BIGINT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	logger.Info("Connected to MySQL cache")

	return &MySQLCache{sqlCache{
		db: db,
		upsert: `INSERT INTO ` + tableName + ` (thread_id, result, timestamp_ms, ttl_ms)
			VALUES (:thread_id, :result, :timestamp_ms, :ttl_ms)
			ON DUPLICATE KEY UPDATE
				result = VALUES(result),
				timestamp_ms = VALUES(timestamp_ms),
				ttl_ms = VALUES(ttl_ms)`,
		logger: logger,
	}}, nil
}
