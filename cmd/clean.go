package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anoixa/storefront-assets/config"
	"github.com/anoixa/storefront-assets/database/models"
	"github.com/anoixa/storefront-assets/internal/app"
	"github.com/anoixa/storefront-assets/storage"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// cleanCmd 清理失效的图片引用和本地孤儿文件
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean dangling image references and orphan local files",
	Long: `Clean dangling image references and orphan local files.
This includes:
  - Remove banner and menu item image urls that no longer match a stored image
  - Delete local storage files without a corresponding image record`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		dbOnly, _ := cmd.Flags().GetBool("db-only")
		storageOnly, _ := cmd.Flags().GetBool("storage-only")
		minAge, _ := cmd.Flags().GetDuration("min-age")

		if err := runClean(dryRun, dbOnly, storageOnly, minAge); err != nil {
			log.Fatalf("Clean failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().Bool("dry-run", false, "Only show what would be cleaned, don't actually delete")
	cleanCmd.Flags().Bool("db-only", false, "Only clean dangling image references")
	cleanCmd.Flags().Bool("storage-only", false, "Only clean orphan local storage files")
	cleanCmd.Flags().Duration("min-age", time.Hour, "Only delete orphan files older than this")
}

// cleanStats 清理统计信息
type cleanStats struct {
	danglingRefs        int // 失效引用数
	orphanStorageFiles  int // 存储孤儿文件数
	deletedRefs         int // 删除的引用数
	deletedStorageFiles int // 删除的存储文件数
	errors              []string
}

// runClean 执行清理
func runClean(dryRun, dbOnly, storageOnly bool, minAge time.Duration) error {
	config.InitConfig()
	cfg := config.Get()

	container := app.NewContainer(cfg)
	if err := container.Init(); err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer container.Close()

	stats := &cleanStats{}
	ctx := context.Background()
	db := container.GetDatabaseProvider().DB()

	// 数据库清理
	if !storageOnly {
		if err := cleanDanglingReferences(ctx, db, stats, dryRun); err != nil {
			stats.errors = append(stats.errors, fmt.Sprintf("clean dangling references failed: %v", err))
		}
	}

	// 存储清理
	if !dbOnly {
		provider, err := container.GetStorageFactory().Get("local")
		if local, ok := provider.(*storage.LocalStorage); err == nil && ok {
			if err := cleanOrphanLocalFiles(ctx, db, local.BasePath(), minAge, stats, dryRun); err != nil {
				stats.errors = append(stats.errors, fmt.Sprintf("clean orphan storage files failed: %v", err))
			}
		} else {
			log.Println("Local storage is not configured, skipping orphan file detection")
		}
	}

	printCleanStats(stats, dryRun)

	if len(stats.errors) > 0 {
		return fmt.Errorf("encountered %d errors during cleanup", len(stats.errors))
	}

	return nil
}

// cleanDanglingReferences 删除指向不存在图片的横幅与菜单项链接
func cleanDanglingReferences(ctx context.Context, db *gorm.DB, stats *cleanStats, dryRun bool) error {
	log.Println("Checking for dangling image references...")

	for _, model := range []interface{}{&models.BannerImage{}, &models.MenuItemImage{}} {
		dangling := db.WithContext(ctx).Model(model).
			Where("image_url NOT IN (?)", db.Model(&models.Asset{}).Select("public_url"))

		var urls []string
		if err := dangling.Pluck("image_url", &urls).Error; err != nil {
			return fmt.Errorf("failed to find dangling references: %w", err)
		}
		stats.danglingRefs += len(urls)

		if dryRun {
			for _, url := range urls {
				log.Printf("[DRY-RUN] Would remove dangling reference: %s", url)
			}
			continue
		}
		if len(urls) == 0 {
			continue
		}

		result := db.WithContext(ctx).
			Where("image_url NOT IN (?)", db.Model(&models.Asset{}).Select("public_url")).
			Delete(model)
		if result.Error != nil {
			return fmt.Errorf("failed to delete dangling references: %w", result.Error)
		}
		stats.deletedRefs += int(result.RowsAffected)
	}

	if !dryRun && stats.deletedRefs > 0 {
		log.Printf("Deleted %d dangling references", stats.deletedRefs)
	}
	return nil
}

// cleanOrphanLocalFiles 删除本地存储中没有对应记录的文件
// 新写入的文件可能属于尚未落库的上传，只处理早于 minAge 的文件
func cleanOrphanLocalFiles(ctx context.Context, db *gorm.DB, basePath string, minAge time.Duration, stats *cleanStats, dryRun bool) error {
	log.Println("Checking for orphan storage files...")

	var keys []string
	if err := db.WithContext(ctx).Model(&models.Asset{}).Where("driver = ?", "local").Pluck("remote_id", &keys).Error; err != nil {
		return fmt.Errorf("failed to fetch local object keys: %w", err)
	}
	known := make(map[string]bool, len(keys))
	for _, key := range keys {
		known[key] = true
	}

	entries, err := os.ReadDir(basePath)
	if err != nil {
		return fmt.Errorf("failed to read storage directory: %w", err)
	}

	cutoff := time.Now().Add(-minAge)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || known[entry.Name()] {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		stats.orphanStorageFiles++
		path := filepath.Join(basePath, entry.Name())
		if dryRun {
			log.Printf("[DRY-RUN] Would delete orphan file: %s", path)
			continue
		}
		if err := os.Remove(path); err != nil {
			stats.errors = append(stats.errors, fmt.Sprintf("failed to delete %s: %v", path, err))
			continue
		}
		stats.deletedStorageFiles++
	}

	if !dryRun && stats.deletedStorageFiles > 0 {
		log.Printf("Deleted %d orphan storage files", stats.deletedStorageFiles)
	}
	return nil
}

// printCleanStats 打印清理统计
func printCleanStats(stats *cleanStats, dryRun bool) {
	fmt.Println()
	fmt.Println("========================================")
	if dryRun {
		fmt.Println("       Clean Statistics (DRY-RUN)")
	} else {
		fmt.Println("       Clean Statistics")
	}
	fmt.Println("========================================")
	fmt.Printf("Dangling references:   %d\n", stats.danglingRefs)
	fmt.Printf("Orphan storage files:  %d\n", stats.orphanStorageFiles)
	if !dryRun {
		fmt.Printf("Deleted references:    %d\n", stats.deletedRefs)
		fmt.Printf("Deleted storage files: %d\n", stats.deletedStorageFiles)
	}
	fmt.Println("========================================")

	if len(stats.errors) > 0 {
		fmt.Println("\nErrors encountered:")
		for _, err := range stats.errors {
			fmt.Printf("  - %s\n", err)
		}
	}
}
