package core

import (
	"net/http"
	"strings"
	"time"

	"github.com/anoixa/storefront-assets/api/common"
	"github.com/anoixa/storefront-assets/api/handler/assets"
	"github.com/anoixa/storefront-assets/api/handler/banners"
	dashboardHandler "github.com/anoixa/storefront-assets/api/handler/dashboard"
	"github.com/anoixa/storefront-assets/api/handler/menuitems"
	"github.com/anoixa/storefront-assets/api/middleware"
	"github.com/anoixa/storefront-assets/cache"
	"github.com/anoixa/storefront-assets/config"
	"github.com/anoixa/storefront-assets/database"
	"github.com/anoixa/storefront-assets/internal/dashboard"
	"github.com/anoixa/storefront-assets/internal/repositories"
	"github.com/anoixa/storefront-assets/internal/services/asset"
	"github.com/anoixa/storefront-assets/internal/worker"
	"github.com/anoixa/storefront-assets/storage"
	"github.com/anoixa/storefront-assets/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// ServerDependencies 服务器依赖项
type ServerDependencies struct {
	Config         *config.Config
	Database       database.Provider
	StorageFactory *storage.Factory
	CacheFactory   *cache.Factory
	Pool           *worker.Pool
	Repositories   *repositories.Repositories
	AssetService   *asset.Service
}

// 启动gin
func setupRouter(deps *ServerDependencies) (*gin.Engine, func()) {
	cfg := deps.Config
	router := gin.New()

	// 全局中间件
	// 仅在开发版本时启用 gin 日志
	if config.IsDevelopment() {
		router.Use(gin.Logger())
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.BaseURL()},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	_ = router.SetTrustedProxies(nil)

	// 并发限制，避免同时解码过多图片导致内存过载
	maxInflight := cfg.ServerMaxInflight
	if maxInflight <= 0 {
		maxInflight = 100
	}
	concurrencyLimiter := middleware.NewConcurrencyLimiter(maxInflight,
		middleware.WithSkipPrefixes("/health", "/metrics", "/version"),
		middleware.WithWeight(func(c *gin.Context) int64 {
			if c.Request.Method == http.MethodPost && strings.HasSuffix(c.Request.URL.Path, "/create/batch") {
				return int64(max(cfg.UploadMaxBatchSize, 1))
			}
			return 1
		}),
	)
	router.Use(concurrencyLimiter.Middleware())

	// 请求体大小限制：base64 膨胀约 4/3，批量上传按批大小放宽
	requestBodyLimit := cfg.UploadMaxBytes() * 2 * int64(max(cfg.UploadMaxBatchSize, 1))
	router.Use(middleware.MaxBytesReader(requestBodyLimit))

	// 请求ID追踪
	router.Use(middleware.RequestID())

	// 基础监控指标
	router.Use(middleware.Metrics())

	// 速率限制
	apiRateLimiter := middleware.NewIPRateLimiter(cfg.RateLimitApiRPS, cfg.RateLimitApiBurst, cfg.RateLimitExpireTime)
	cleanup := func() {
		apiRateLimiter.StopCleanup()
	}

	registerBasicRoutes(router, deps, concurrencyLimiter)
	registerUploads(router, deps.StorageFactory)

	assetHandler := assets.NewHandler(deps.AssetService, cfg.UploadMaxBatchSize)
	bannerHandler := banners.NewHandler(deps.Repositories.Banners, deps.AssetService)
	menuHandler := menuitems.NewHandler(deps.Repositories.MenuItems, deps.AssetService)
	statsHandler := dashboardHandler.NewHandler(
		dashboard.NewService(deps.Repositories.Dashboard, deps.CacheFactory.GetProvider()),
	)

	apiGroup := router.Group("/api")
	apiGroup.Use(func(context *gin.Context) { // 所有API禁止缓存
		context.Header("Cache-Control", "no-store")
		context.Next()
	})
	apiGroup.Use(apiRateLimiter.Middleware())
	apiGroup.Use(gzip.Gzip(gzip.DefaultCompression))
	{
		imageGroup := apiGroup.Group("/image")
		{
			imageGroup.POST("/create", assetHandler.CreateImage)        // POST /api/image/create
			imageGroup.POST("/create/batch", assetHandler.CreateImages) // POST /api/image/create/batch
			imageGroup.DELETE("/delete/:id", assetHandler.DeleteImage)  // DELETE /api/image/delete/{id}
			imageGroup.GET("/all", assetHandler.ListImages)             // GET /api/image/all
			imageGroup.GET("/exists", assetHandler.ImageExists)         // GET /api/image/exists?url=
			imageGroup.GET("/:id", assetHandler.GetImage)               // GET /api/image/{id}
		}

		bannerGroup := apiGroup.Group("/banner")
		{
			bannerGroup.GET("", bannerHandler.GetBanner)             // GET /api/banner
			bannerGroup.PUT("/update", bannerHandler.UpdateBanner)   // PUT /api/banner/update
			bannerGroup.POST("/images", bannerHandler.AddImage)      // POST /api/banner/images
			bannerGroup.DELETE("/images", bannerHandler.RemoveImage) // DELETE /api/banner/images
		}

		menuGroup := apiGroup.Group("/menu")
		{
			menuGroup.POST("/create", menuHandler.CreateMenuItem)    // POST /api/menu/create
			menuGroup.GET("/:id", menuHandler.GetMenuItem)           // GET /api/menu/{id}
			menuGroup.POST("/:id/images", menuHandler.AddImage)      // POST /api/menu/{id}/images
			menuGroup.DELETE("/:id/images", menuHandler.RemoveImage) // DELETE /api/menu/{id}/images
		}

		apiGroup.GET("/stats", statsHandler.GetStats) // GET /api/stats
	}

	return router, cleanup
}

// registerBasicRoutes 健康检查、版本与指标
func registerBasicRoutes(router *gin.Engine, deps *ServerDependencies, limiter *middleware.ConcurrencyLimiter) {
	router.GET("/health", func(context *gin.Context) {
		checks := gin.H{
			"database": checkDatabaseHealth(deps.Database),
			"cache":    checkCacheHealth(deps.CacheFactory),
			"storage":  checkStorageHealth(context.Request.Context(), deps.StorageFactory),
			"pool":     checkPoolHealth(deps.Pool),
		}
		httpStatus := http.StatusOK
		for _, checkResult := range checks {
			if result, ok := checkResult.(string); ok && result != "ok" {
				httpStatus = http.StatusServiceUnavailable
				break
			}
		}
		context.JSON(httpStatus, gin.H{
			"status":  "ok",
			"uptime":  time.Since(startTime).Round(time.Second).String(),
			"version": config.Version,
			"checks":  checks,
		})
	})

	router.GET("/version", func(context *gin.Context) {
		common.RespondSuccess(context, gin.H{
			"version": config.Version,
			"commit":  config.CommitHash,
		})
	})

	router.GET("/metrics", func(context *gin.Context) {
		metrics := middleware.GetMetrics()
		if deps.Pool != nil {
			stats := deps.Pool.GetStats()
			metrics["pool"] = gin.H{
				"submitted": stats.Submitted,
				"executed":  stats.Executed,
				"failed":    stats.Failed,
				"rejected":  stats.Rejected,
				"workers":   stats.WorkerCount,
				"queue_len": stats.QueueLen,
				"queue_cap": stats.QueueCap,
			}
		}
		metrics["inflight"] = limiter.InFlight()
		if deps.CacheFactory != nil {
			if stats, ok := deps.CacheFactory.Stats(); ok {
				metrics["cache"] = stats
			}
		}
		metrics["memory"] = utils.GetMemoryStats()
		context.JSON(http.StatusOK, metrics)
	})
}

// registerUploads 启用本地存储时直接提供文件访问
func registerUploads(router *gin.Engine, storageFactory *storage.Factory) {
	if storageFactory == nil {
		return
	}
	provider, err := storageFactory.Get("local")
	if err != nil {
		return
	}
	if local, ok := provider.(*storage.LocalStorage); ok {
		router.Static("/uploads", local.BasePath())
	}
}

// StartServer 创建 http.Server
func StartServer(deps *ServerDependencies) (*http.Server, func()) {
	cfg := deps.Config
	router, clean := setupRouter(deps)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return srv, clean
}
