package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/anoixa/storefront-assets/cache/memory"
	"github.com/anoixa/storefront-assets/cache/redis"
	"github.com/anoixa/storefront-assets/cache/types"
	"github.com/anoixa/storefront-assets/config"
)

// Factory 缓存工厂，持有当前使用的缓存提供者
type Factory struct {
	provider Provider
	ttl      time.Duration
}

// NewFactory 按配置创建缓存，redis 不可用时退回内存缓存
func NewFactory(cfg *config.Config) (*Factory, error) {
	ttl := cfg.CacheAssetTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	if cfg.CacheType == "redis" {
		provider, err := redis.NewRedisFromConfig(&redis.Config{
			Address:      cfg.CacheRedisAddr,
			Password:     cfg.CacheRedisPassword,
			DB:           cfg.CacheRedisDB,
			PoolSize:     10,
			MinIdleConns: 5,
			Prefix:       "storefront:",
		})
		if err == nil {
			log.Printf("[CacheFactory] Using redis cache at %s", cfg.CacheRedisAddr)
			return &Factory{provider: provider, ttl: ttl}, nil
		}
		log.Printf("[CacheFactory] Redis unavailable, falling back to memory cache: %v", err)
	}

	provider, err := NewMemoryProvider(cfg.CacheMaxCostMB)
	if err != nil {
		return nil, err
	}
	log.Printf("[CacheFactory] Using memory cache (%d MB)", cfg.CacheMaxCostMB)
	return &Factory{provider: provider, ttl: ttl}, nil
}

// NewFactoryWithProvider 使用现成的提供者，测试使用
func NewFactoryWithProvider(provider Provider, ttl time.Duration) *Factory {
	return &Factory{provider: provider, ttl: ttl}
}

// NewMemoryProvider 创建内存缓存，maxCostMB 为容量上限
func NewMemoryProvider(maxCostMB int64) (Provider, error) {
	if maxCostMB <= 0 {
		maxCostMB = 64
	}
	maxCost := maxCostMB << 20
	provider, err := memory.NewMemory(memory.Config{
		// ristretto 建议计数器数量为条目数的 10 倍，按每条约 1KB 估算
		NumCounters: maxCost / 1024 * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return provider, nil
}

// GetProvider 获取缓存提供者
func (f *Factory) GetProvider() Provider {
	return f.provider
}

// TTL 缓存默认过期时间
func (f *Factory) TTL() time.Duration {
	return f.ttl
}

// Stats 命中统计，提供者不支持时 ok 为 false
func (f *Factory) Stats() (types.Stats, bool) {
	reporter, ok := f.provider.(types.StatsReporter)
	if !ok {
		return types.Stats{}, false
	}
	return reporter.Stats(), true
}

// Close 关闭缓存
func (f *Factory) Close() error {
	return f.provider.Close()
}

// --- 便捷方法 ---

// Set 使用默认过期时间设置缓存项
func (f *Factory) Set(ctx context.Context, key string, value interface{}) error {
	return f.provider.Set(ctx, key, value, f.ttl)
}

// Get 获取缓存项
func (f *Factory) Get(ctx context.Context, key string, dest interface{}) error {
	return f.provider.Get(ctx, key, dest)
}

// Delete 删除缓存项
func (f *Factory) Delete(ctx context.Context, keys ...string) error {
	var lastErr error
	for _, key := range keys {
		if err := f.provider.Delete(ctx, key); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
