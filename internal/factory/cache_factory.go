package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mikey/inbox-triage/internal/adapters/cache"
	"github.com/mikey/inbox-triage/internal/config"
	"github.com/mikey/inbox-triage/internal/core"
	"go.uber.org/zap"
)

// CacheFactory creates cache repositories based on configuration
type CacheFactory struct {
	cfg    config.CacheConfig
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg.GetCache(),
		logger: logger,
	}
}

// CreateCacheRepository creates the configured cache backend
func (f *CacheFactory) CreateCacheRepository() (core.CacheRepository, error) {
	switch f.cfg.Type {
	case "memory":
		return cache.NewMemoryCache(f.logger), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(f.cfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return cache.NewSQLiteCache(f.cfg.SQLitePath, f.logger)
	case "mysql":
		return cache.NewMySQLCache(f.cfg.MySQLDSN, f.logger)
	case "valkey":
		return cache.NewValkeyCache(f.cfg.ValkeyAddress, f.logger)
	case "firestore":
		if f.cfg.FirestoreProject == "" {
			return nil, fmt.Errorf("cache.firestore_project is required for the firestore cache")
		}
		return cache.NewFirestoreCache(context.Background(), f.cfg.FirestoreProject, f.cfg.FirestoreCollection, f.logger)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", f.cfg.Type)
	}
}

// CreateAnalysisCache wraps repo with the freshness policy. It returns nil
// when caching is disabled, which the ingestion service treats as always-miss.
func (f *CacheFactory) CreateAnalysisCache(repo core.CacheRepository) *core.AnalysisCache {
	if !f.cfg.Enabled {
		f.logger.Info("Analysis cache disabled")
		return nil
	}
	return core.NewAnalysisCache(repo, f.cfg.TTL, time.Now)
}

// IsCacheEnabled returns whether caching is enabled
func (f *CacheFactory) IsCacheEnabled() bool {
	return f.cfg.Enabled
}
