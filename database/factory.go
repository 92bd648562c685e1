package database

import (
	"errors"
	"fmt"
	"log"

	"github.com/anoixa/storefront-assets/config"
	"github.com/anoixa/storefront-assets/database/models"
)

var errNoProvider = errors.New("database provider not initialized")

// Factory 持有进程内唯一的数据库提供者
type Factory struct {
	provider Provider
}

// NewFactory 按配置打开数据库
func NewFactory(cfg *config.Config) (*Factory, error) {
	provider, err := NewGormProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.DBType, err)
	}
	log.Printf("[Database] %s provider ready", provider.Name())
	return &Factory{provider: provider}, nil
}

// GetProvider 获取数据库提供者
func (f *Factory) GetProvider() Provider {
	return f.provider
}

// AutoMigrate 建立或更新全部表
func (f *Factory) AutoMigrate() error {
	if f.provider == nil {
		return errNoProvider
	}
	return Migrate(f.provider)
}

// Close 关闭数据库连接
func (f *Factory) Close() error {
	if f.provider == nil {
		return nil
	}
	return f.provider.Close()
}

// Migrate 迁移 assets、banners、menu_items 及其图片列表
func Migrate(p Provider) error {
	all := models.All()
	if err := p.AutoMigrate(all...); err != nil {
		return fmt.Errorf("failed to auto migrate %d models on %s: %w", len(all), p.Name(), err)
	}
	log.Printf("[Database] migrated %d models on %s", len(all), p.Name())
	return nil
}
