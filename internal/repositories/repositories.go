package repositories

import (
	"github.com/anoixa/storefront-assets/database"
	"github.com/anoixa/storefront-assets/database/repo/assets"
	"github.com/anoixa/storefront-assets/database/repo/banners"
	"github.com/anoixa/storefront-assets/database/repo/dashboard"
	"github.com/anoixa/storefront-assets/database/repo/menuitems"
)

// Repositories 集中管理所有数据库仓库
type Repositories struct {
	Assets    *assets.Repository
	Banners   *banners.Repository
	MenuItems *menuitems.Repository
	Dashboard *dashboard.Repository
}

// NewRepositories 创建所有仓库实例
func NewRepositories(provider database.Provider) *Repositories {
	return &Repositories{
		Assets:    assets.NewRepository(provider),
		Banners:   banners.NewRepository(provider),
		MenuItems: menuitems.NewRepository(provider),
		Dashboard: dashboard.NewRepository(provider),
	}
}
