package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anoixa/storefront-assets/cache/types"
	"github.com/dgraph-io/ristretto"
)

// Memory 基于 ristretto 的进程内缓存
// 值以 JSON 保存，Get 时反序列化，调用方拿到的总是副本，
// 缓存的 Asset 不会被其他请求改写
type Memory struct {
	client *ristretto.Cache
}

// Config ristretto 参数；Metrics 开启后 Stats 才有数据
type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

// NewMemory 创建内存缓存
func NewMemory(cfg Config) (*Memory, error) {
	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Memory{client: client}, nil
}

// Set 写入并等待生效，开销按序列化后的字节数计算
// ristretto 的写入是异步的，不等待的话紧接着的 Get 可能未命中
func (m *Memory) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if m.client.SetWithTTL(key, data, int64(len(data)), expiration) {
		m.client.Wait()
	}
	return nil
}

// Get 未命中或无法解码时都返回 ErrCacheMiss
func (m *Memory) Get(ctx context.Context, key string, dest interface{}) error {
	value, found := m.client.Get(key)
	if !found {
		return types.ErrCacheMiss
	}
	data, ok := value.([]byte)
	if !ok {
		return types.ErrCacheMiss
	}

	if out, ok := dest.(*[]byte); ok {
		*out = append([]byte(nil), data...)
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return types.ErrCacheMiss
	}
	return nil
}

// Delete 立即生效
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.client.Del(key)
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	_, found := m.client.Get(key)
	return found, nil
}

// Stats 命中统计，未开启 Metrics 时全部为零
func (m *Memory) Stats() types.Stats {
	metrics := m.client.Metrics
	if metrics == nil {
		return types.Stats{}
	}
	return types.Stats{
		Hits:      metrics.Hits(),
		Misses:    metrics.Misses(),
		KeysAdded: metrics.KeysAdded(),
		Evicted:   metrics.KeysEvicted(),
		HitRatio:  metrics.Ratio(),
	}
}

func (m *Memory) Close() error {
	m.client.Close()
	return nil
}

func (m *Memory) Name() string {
	return "memory"
}

func encode(value interface{}) ([]byte, error) {
	if data, ok := value.([]byte); ok {
		return data, nil
	}
	return json.Marshal(value)
}
