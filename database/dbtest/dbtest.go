// Package dbtest 提供测试用的 sqlite 数据库
package dbtest

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anoixa/storefront-assets/database"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewProvider 创建独立的内存数据库并完成迁移
// 每个测试使用独立的库名，避免 cache=shared 时相互污染
func NewProvider(t *testing.T) *database.GormProvider {
	t.Helper()

	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
	// 内存库单连接，规避 shared cache 下的表锁
	return open(t, dsn, 1)
}

// NewFileProvider 在临时目录创建文件库，连接参数与生产一致（WAL、busy_timeout、立即事务）
// 多连接，用于覆盖并发事务的加锁行为
func NewFileProvider(t *testing.T) *database.GormProvider {
	t.Helper()

	path := filepath.Join(t.TempDir(), "storefront.db")
	return open(t, database.SQLiteDSN(path), 4)
}

func open(t *testing.T, dsn string, maxConns int) *database.GormProvider {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(maxConns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	provider := database.NewGormProviderFromDB(db, "sqlite")
	if err := database.Migrate(provider); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return provider
}
