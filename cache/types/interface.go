package types

import "errors"

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// IsCacheMiss 判断是否为缓存未命中
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// Stats 缓存命中统计
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	KeysAdded uint64  `json:"keys_added"`
	Evicted   uint64  `json:"evicted"`
	HitRatio  float64 `json:"hit_ratio"`
}

// StatsReporter 能报告命中统计的缓存实现
type StatsReporter interface {
	Stats() Stats
}
