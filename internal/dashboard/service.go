package dashboard

import (
	"context"
	"math"
	"time"

	"github.com/anoixa/storefront-assets/cache"
	"github.com/anoixa/storefront-assets/database/repo/dashboard"
	"github.com/anoixa/storefront-assets/utils/format"
)

const trendDays = 30

// StatsRepository 统计仓库接口
type StatsRepository interface {
	GetOverviewStats(ctx context.Context) (*dashboard.OverviewStats, error)
	GetDriverStats(ctx context.Context) ([]dashboard.DriverStat, error)
	GetDailyStats(ctx context.Context, days int) ([]dashboard.DailyStat, error)
}

// Service 图片库统计服务
type Service struct {
	repo     StatsRepository
	cache    cache.Provider
	cacheTTL time.Duration
}

// NewService 创建新的统计服务
func NewService(repo StatsRepository, cacheProvider cache.Provider) *Service {
	return &Service{
		repo:     repo,
		cache:    cacheProvider,
		cacheTTL: time.Minute,
	}
}

// StatsResponse 统计响应
type StatsResponse struct {
	Overview    OverviewStats    `json:"overview"`
	DriverStats []DriverStatItem `json:"driver_stats"`
	Trend       TrendStats       `json:"trend"`
}

// OverviewStats 概览统计
type OverviewStats struct {
	Assets     CountStats   `json:"assets"`
	References RefStats     `json:"references"`
	Storage    StorageStats `json:"storage"`
}

// CountStats 数量统计
type CountStats struct {
	Total int64 `json:"total"`
}

// RefStats 实体对图片链接的引用数量
type RefStats struct {
	BannerImages   int64 `json:"banner_images"`
	MenuItems      int64 `json:"menu_items"`
	MenuItemImages int64 `json:"menu_item_images"`
}

// StorageStats 存储统计
type StorageStats struct {
	TotalSize      int64  `json:"total_size"`
	TotalSizeHuman string `json:"total_size_human"`
}

// DriverStatItem 单个存储驱动统计
type DriverStatItem struct {
	Driver     string  `json:"driver"`
	Count      int64   `json:"count"`
	Size       int64   `json:"size"`
	SizeHuman  string  `json:"size_human"`
	Percentage float64 `json:"percentage"`
}

// TrendStats 趋势统计
type TrendStats struct {
	Period string   `json:"period"`
	Dates  []string `json:"dates"`
	Data   []int64  `json:"data"`
}

var statsKey = cache.Stats.Build("overview")

// GetStats 获取统计数据，结果短暂缓存
func (s *Service) GetStats(ctx context.Context) (*StatsResponse, error) {
	var cached StatsResponse
	if err := s.cache.Get(ctx, statsKey, &cached); err == nil {
		return &cached, nil
	}

	overview, err := s.repo.GetOverviewStats(ctx)
	if err != nil {
		return nil, err
	}

	driverStats, err := s.repo.GetDriverStats(ctx)
	if err != nil {
		return nil, err
	}

	dailyStats, err := s.repo.GetDailyStats(ctx, trendDays)
	if err != nil {
		return nil, err
	}

	response := s.buildResponse(overview, driverStats, dailyStats)

	_ = s.cache.Set(ctx, statsKey, response, s.cacheTTL)

	return response, nil
}

// RefreshCache 丢弃缓存的统计数据
func (s *Service) RefreshCache(ctx context.Context) error {
	return s.cache.Delete(ctx, statsKey)
}

func (s *Service) buildResponse(
	overview *dashboard.OverviewStats,
	driverStats []dashboard.DriverStat,
	dailyStats []dashboard.DailyStat,
) *StatsResponse {
	var totalSize int64
	for _, stat := range driverStats {
		totalSize += stat.Size
	}

	items := make([]DriverStatItem, len(driverStats))
	for i, stat := range driverStats {
		percentage := 0.0
		if totalSize > 0 {
			percentage = float64(stat.Size) / float64(totalSize) * 100
			percentage = math.Round(percentage*100) / 100
		}
		items[i] = DriverStatItem{
			Driver:     stat.Driver,
			Count:      stat.Count,
			Size:       stat.Size,
			SizeHuman:  format.HumanReadableSize(stat.Size),
			Percentage: percentage,
		}
	}

	return &StatsResponse{
		Overview: OverviewStats{
			Assets: CountStats{Total: overview.AssetTotal},
			References: RefStats{
				BannerImages:   overview.BannerImageTotal,
				MenuItems:      overview.MenuItemTotal,
				MenuItemImages: overview.MenuImageTotal,
			},
			Storage: StorageStats{
				TotalSize:      overview.StorageTotal,
				TotalSizeHuman: format.HumanReadableSize(overview.StorageTotal),
			},
		},
		DriverStats: items,
		Trend:       buildTrendData(dailyStats, trendDays, time.Now()),
	}
}

// buildTrendData 以 now 为最后一天补齐 days 天的数据，缺失的天数为 0
func buildTrendData(stats []dashboard.DailyStat, days int, now time.Time) TrendStats {
	statMap := make(map[string]int64, len(stats))
	for _, stat := range stats {
		statMap[stat.Date] = stat.Count
	}

	dates := make([]string, days)
	data := make([]int64, days)
	for i := 0; i < days; i++ {
		date := now.AddDate(0, 0, -(days - 1 - i)).Format("2006-01-02")
		dates[i] = date
		data[i] = statMap[date]
	}

	return TrendStats{
		Period: "30d",
		Dates:  dates,
		Data:   data,
	}
}
