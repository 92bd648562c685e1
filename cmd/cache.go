package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/anoixa/storefront-assets/cache"
	"github.com/anoixa/storefront-assets/config"
	"github.com/anoixa/storefront-assets/database"
	"github.com/anoixa/storefront-assets/database/models"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// cacheCmd 缓存管理命令
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Cache management commands",
	Long:  "Manage application cache, including clearing cached image records.",
}

// cacheClearCmd 清除缓存命令
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached image records",
	Long: `Clear cached image records from the shared cache.
Only the redis cache is shared with running servers; the memory cache lives inside each server process.`,
	Run: func(cmd *cobra.Command, args []string) {
		ids, _ := cmd.Flags().GetUintSlice("id")

		if err := runCacheClear(ids); err != nil {
			log.Fatalf("Cache clear failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheClearCmd.Flags().UintSlice("id", nil, "Only clear the given image ids (default: all images)")
}

// runCacheClear 执行缓存清理
func runCacheClear(ids []uint) error {
	config.InitConfig()
	cfg := config.Get()

	if cfg.CacheType != "redis" {
		log.Printf("Cache type '%s' is private to each server process, nothing to clear", cfg.CacheType)
		return nil
	}

	cacheFactory, err := cache.NewFactory(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheFactory.Close()
	log.Printf("Cache provider: %s", cacheFactory.GetProvider().Name())

	dbFactory, err := database.NewFactory(cfg)
	if err != nil {
		return err
	}
	defer dbFactory.Close()

	cleared, err := clearAssetCache(context.Background(), dbFactory.GetProvider().DB(), cacheFactory, ids)
	if err != nil {
		return err
	}
	log.Printf("Cleared cache for %d images", cleared)
	return nil
}

// clearAssetCache 删除图片记录的 ID 与哈希两类缓存键
func clearAssetCache(ctx context.Context, db *gorm.DB, cacheFactory *cache.Factory, ids []uint) (int, error) {
	query := db.WithContext(ctx).Model(&models.Asset{}).Select("id", "content_hash")
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}

	var list []models.Asset
	if err := query.Find(&list).Error; err != nil {
		return 0, fmt.Errorf("failed to list images: %w", err)
	}

	cleared := 0
	for _, a := range list {
		err := cacheFactory.Delete(ctx,
			cache.AssetByID.BuildID(a.ID),
			cache.AssetByHash.Build(a.ContentHash),
		)
		if err != nil {
			log.Printf("Warning: failed to delete cache for image %d: %v", a.ID, err)
			continue
		}
		cleared++
	}
	return cleared, nil
}
