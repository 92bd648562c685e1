package core

import (
	"context"
	"time"

	"github.com/anoixa/storefront-assets/cache"
	"github.com/anoixa/storefront-assets/database"
	"github.com/anoixa/storefront-assets/internal/worker"
	"github.com/anoixa/storefront-assets/storage"
)

const healthCheckTimeout = 3 * time.Second

func checkDatabaseHealth(provider database.Provider) string {
	if provider == nil {
		return "not initialized"
	}
	if err := provider.Ping(); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}

func checkCacheHealth(cacheFactory *cache.Factory) string {
	if cacheFactory == nil {
		return "not initialized"
	}
	if cacheFactory.GetProvider() != nil {
		return "ok"
	}
	return "not initialized"
}

func checkStorageHealth(ctx context.Context, storageFactory *storage.Factory) string {
	if storageFactory == nil {
		return "not initialized"
	}

	provider := storageFactory.GetDefault()
	if provider == nil {
		return "error: no default storage provider"
	}

	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	if err := provider.Health(ctx); err != nil {
		return "error: " + err.Error()
	}

	return "ok"
}

// checkPoolHealth 队列已满视为降级
func checkPoolHealth(pool *worker.Pool) string {
	if pool == nil {
		return "not initialized"
	}
	stats := pool.GetStats()
	if stats.QueueCap > 0 && stats.QueueLen >= stats.QueueCap {
		return "saturated"
	}
	return "ok"
}
