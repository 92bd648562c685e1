package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anoixa/storefront-assets/api/core"
	"github.com/anoixa/storefront-assets/config"
	"github.com/anoixa/storefront-assets/internal/app"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// RunServer 初始化容器并运行 HTTP 服务，收到 SIGINT/SIGTERM 后按序退出
func RunServer() error {
	config.InitConfig()
	cfg := config.Get()

	if err := os.MkdirAll("./data", 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	container := app.NewContainer(cfg)
	if err := container.Init(); err != nil {
		_ = container.Close()
		return err
	}
	storages := container.GetStorageFactory()
	log.Printf("[Server] database=%s storage=%v (default %s)",
		container.GetDatabaseProvider().Name(), storages.ListProviders(), storages.GetDefaultName())

	server, cleanup := core.StartServer(&core.ServerDependencies{
		Config:         cfg,
		Database:       container.GetDatabaseProvider(),
		StorageFactory: storages,
		CacheFactory:   container.GetCacheFactory(),
		Pool:           container.GetPool(),
		Repositories:   container.Repos,
		AssetService:   container.AssetService,
	})

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("[Server] listening on %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		log.Printf("[Server] received %s, shutting down", sig)
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	// 先停止接收请求，再停任务池（排队中的远程删除会执行完），最后关闭缓存与数据库
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("[Server] forced to shutdown: %v", err)
	}
	cleanup()
	if err := container.Close(); err != nil {
		log.Printf("[Server] error closing container: %v", err)
	}

	log.Println("[Server] exited")
	return runErr
}
