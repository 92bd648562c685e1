package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/anoixa/storefront-assets/database"
	"github.com/anoixa/storefront-assets/database/models"
)

// Repository 图片与引用统计仓库
type Repository struct {
	db database.Provider
}

// NewRepository 创建新的统计仓库
func NewRepository(db database.Provider) *Repository {
	return &Repository{db: db}
}

// OverviewStats 概览统计
type OverviewStats struct {
	AssetTotal       int64
	StorageTotal     int64
	BannerImageTotal int64
	MenuItemTotal    int64
	MenuImageTotal   int64
}

// GetOverviewStats 获取概览统计
func (r *Repository) GetOverviewStats(ctx context.Context) (*OverviewStats, error) {
	var result OverviewStats
	conn := database.Conn(ctx, r.db)

	err := conn.Model(&models.Asset{}).
		Select("COUNT(*) as asset_total, COALESCE(SUM(size), 0) as storage_total").
		Scan(&result).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count assets: %w", err)
	}

	if err := conn.Model(&models.BannerImage{}).Count(&result.BannerImageTotal).Error; err != nil {
		return nil, fmt.Errorf("failed to count banner images: %w", err)
	}
	if err := conn.Model(&models.MenuItem{}).Count(&result.MenuItemTotal).Error; err != nil {
		return nil, fmt.Errorf("failed to count menu items: %w", err)
	}
	if err := conn.Model(&models.MenuItemImage{}).Count(&result.MenuImageTotal).Error; err != nil {
		return nil, fmt.Errorf("failed to count menu item images: %w", err)
	}

	return &result, nil
}

// DriverStat 各存储驱动的统计
type DriverStat struct {
	Driver string
	Count  int64
	Size   int64
}

// GetDriverStats 按存储驱动分组统计
func (r *Repository) GetDriverStats(ctx context.Context) ([]DriverStat, error) {
	var stats []DriverStat

	err := database.Conn(ctx, r.db).Model(&models.Asset{}).
		Select("driver, COUNT(*) as count, COALESCE(SUM(size), 0) as size").
		Group("driver").
		Order("size DESC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group assets by driver: %w", err)
	}
	return stats, nil
}

// DailyStat 每日上传数量
type DailyStat struct {
	Date  string
	Count int64
}

// GetDailyStats 获取近 N 天每日上传数量
// 日期函数在 SQLite 与 PostgreSQL 间不通用，只取时间戳后在内存中按本地日期分桶
func (r *Repository) GetDailyStats(ctx context.Context, days int) ([]DailyStat, error) {
	now := time.Now()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(days - 1))

	var createdAt []time.Time
	err := database.Conn(ctx, r.db).Model(&models.Asset{}).
		Where("created_at >= ?", since).
		Order("created_at").
		Pluck("created_at", &createdAt).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load daily stats: %w", err)
	}

	var stats []DailyStat
	for _, ts := range createdAt {
		date := ts.In(now.Location()).Format("2006-01-02")
		if n := len(stats); n > 0 && stats[n-1].Date == date {
			stats[n-1].Count++
			continue
		}
		stats = append(stats, DailyStat{Date: date, Count: 1})
	}
	return stats, nil
}
