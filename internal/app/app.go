package app

import (
	"fmt"
	"log"

	"github.com/anoixa/storefront-assets/cache"
	"github.com/anoixa/storefront-assets/config"
	"github.com/anoixa/storefront-assets/database"
	"github.com/anoixa/storefront-assets/internal/repositories"
	"github.com/anoixa/storefront-assets/internal/services/asset"
	"github.com/anoixa/storefront-assets/internal/services/reference"
	"github.com/anoixa/storefront-assets/internal/worker"
	"github.com/anoixa/storefront-assets/storage"
	"github.com/anoixa/storefront-assets/utils"
)

// Container 依赖注入容器，管理所有服务的生命周期
type Container struct {
	config          *config.Config
	databaseFactory *database.Factory
	storageFactory  *storage.Factory
	cacheFactory    *cache.Factory
	pool            *worker.Pool

	Repos        *repositories.Repositories
	AssetService *asset.Service
}

// NewContainer 创建新的依赖注入容器
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

// Init 按依赖顺序初始化数据库、存储、缓存、任务池与服务
func (c *Container) Init() error {
	if err := c.InitDatabase(); err != nil {
		return err
	}
	if err := c.InitServices(); err != nil {
		return err
	}
	return nil
}

// InitDatabase 初始化数据库并完成迁移
func (c *Container) InitDatabase() error {
	utils.LogIfDev("Initializing DI container...")

	factory, err := database.NewFactory(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize database factory: %w", err)
	}
	c.databaseFactory = factory

	if err := factory.AutoMigrate(); err != nil {
		return err
	}

	c.Repos = repositories.NewRepositories(factory.GetProvider())
	utils.LogIfDev("Repositories initialized")
	return nil
}

// InitServices 初始化存储、缓存、任务池与业务服务
func (c *Container) InitServices() error {
	storageFactory, err := storage.NewFactory(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.storageFactory = storageFactory

	cacheFactory, err := cache.NewFactory(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	c.cacheFactory = cacheFactory

	worker.InitGlobalPool(
		c.config.AsyncCoreWorkers,
		c.config.AsyncQueueSize,
		worker.WithMaxWorkers(c.config.AsyncMaxWorkers),
		worker.WithKeepAlive(c.config.AsyncKeepAlive),
	)
	c.pool = worker.GetGlobalPool()

	checker := reference.NewChecker(c.Repos.Banners, c.Repos.MenuItems)
	c.AssetService = asset.NewService(
		c.databaseFactory.GetProvider(),
		c.Repos.Assets,
		checker,
		c.storageFactory,
		c.pool,
		c.cacheFactory,
		asset.Options{
			MaxUploadBytes: c.config.UploadMaxBytes(),
			RequireImage:   c.config.UploadRequireImage,
			RemoteTimeout:  c.config.CloudTimeout,
		},
	)

	utils.LogIfDev("DI container initialized successfully")
	return nil
}

// GetConfig 获取配置
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetDatabaseProvider 获取数据库提供者
func (c *Container) GetDatabaseProvider() database.Provider {
	if c.databaseFactory == nil {
		return nil
	}
	return c.databaseFactory.GetProvider()
}

// GetStorageFactory 获取存储工厂
func (c *Container) GetStorageFactory() *storage.Factory {
	return c.storageFactory
}

// GetCacheFactory 获取缓存工厂
func (c *Container) GetCacheFactory() *cache.Factory {
	return c.cacheFactory
}

// GetPool 获取后台任务池
func (c *Container) GetPool() *worker.Pool {
	return c.pool
}

// Close 按初始化的逆序释放资源；任务池先停，保证排队中的远程删除执行完
func (c *Container) Close() error {
	var lastErr error

	worker.StopGlobalPool()

	if c.cacheFactory != nil {
		if err := c.cacheFactory.Close(); err != nil {
			log.Printf("[Container] failed to close cache: %v", err)
			lastErr = err
		}
	}
	if c.databaseFactory != nil {
		if err := c.databaseFactory.Close(); err != nil {
			log.Printf("[Container] failed to close database: %v", err)
			lastErr = err
		}
	}
	return lastErr
}
