package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/anoixa/storefront-assets/database/models"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// migrateCmd 数据库迁移命令
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tools",
	Long:  `Migrate data from one database to another (e.g., SQLite to PostgreSQL).`,
}

// migrateRunCmd 执行迁移命令
var migrateRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run database migration",
	Long: `Run database migration from source to target database.

Examples:
  # Migrate from SQLite to PostgreSQL
  storefront-assets migrate run --from-sqlite ./data/storefront.db --to-postgres "host=localhost user=postgres password=secret dbname=storefront port=5432"

  # Migrate with overwrite strategy (replace existing data)
  storefront-assets migrate run --from-sqlite ./data/storefront.db --to-postgres "..." --on-conflict=overwrite

  # Stop on conflict
  storefront-assets migrate run --from-sqlite ./data/storefront.db --to-postgres "..." --on-conflict=error`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := migrateOptions{}
		opts.fromType, _ = cmd.Flags().GetString("from-type")
		opts.toType, _ = cmd.Flags().GetString("to-type")
		opts.fromDSN, _ = cmd.Flags().GetString("from-dsn")
		opts.toDSN, _ = cmd.Flags().GetString("to-dsn")
		fromSQLite, _ := cmd.Flags().GetString("from-sqlite")
		toPostgres, _ := cmd.Flags().GetString("to-postgres")
		opts.skipConfirm, _ = cmd.Flags().GetBool("yes")
		opts.batchSize, _ = cmd.Flags().GetInt("batch-size")
		opts.onConflict, _ = cmd.Flags().GetString("on-conflict")

		// 处理快捷方式参数
		if fromSQLite != "" {
			opts.fromType = "sqlite"
			opts.fromDSN = fromSQLite
		}
		if toPostgres != "" {
			opts.toType = "postgres"
			opts.toDSN = toPostgres
		}

		if err := runMigration(opts); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateRunCmd)

	migrateRunCmd.Flags().String("from-type", "", "Source database type (sqlite, postgres)")
	migrateRunCmd.Flags().String("to-type", "", "Target database type (sqlite, postgres)")
	migrateRunCmd.Flags().String("from-dsn", "", "Source database DSN/connection string")
	migrateRunCmd.Flags().String("to-dsn", "", "Target database DSN/connection string")
	migrateRunCmd.Flags().String("from-sqlite", "", "Source SQLite file path (shortcut)")
	migrateRunCmd.Flags().String("to-postgres", "", "Target PostgreSQL connection string (shortcut)")
	migrateRunCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
	migrateRunCmd.Flags().Int("batch-size", 100, "Batch size for data migration")
	migrateRunCmd.Flags().String("on-conflict", "skip", "Conflict resolution strategy: skip (default), overwrite, error")
}

type migrateOptions struct {
	fromType, toType string
	fromDSN, toDSN   string
	skipConfirm      bool
	batchSize        int
	onConflict       string
}

// tableStats 单张表的迁移统计
type tableStats struct {
	table       string
	migrated    int
	skipped     int // 跳过的记录数
	overwritten int // 覆盖的记录数
}

// migrateStats 迁移统计
type migrateStats struct {
	tables []*tableStats
	errors []string
}

// errConflict 目标库已存在同一条记录且策略为 error
var errConflict = errors.New("record already exists in target database")

// runMigration 执行数据库迁移
func runMigration(opts migrateOptions) error {
	// 验证冲突处理策略
	if opts.onConflict != "skip" && opts.onConflict != "overwrite" && opts.onConflict != "error" {
		return fmt.Errorf("invalid on-conflict strategy: %s (must be skip, overwrite, or error)", opts.onConflict)
	}
	if opts.batchSize <= 0 {
		opts.batchSize = 100
	}

	// 验证参数
	if opts.fromType == "" || opts.toType == "" {
		return fmt.Errorf("both --from-type and --to-type are required")
	}
	if opts.fromDSN == "" || opts.toDSN == "" {
		return fmt.Errorf("both --from-dsn and --to-dsn (or shortcuts) are required")
	}

	// 检查源和目标是否相同
	if opts.fromType == opts.toType && opts.fromDSN == opts.toDSN {
		return fmt.Errorf("source and target databases are the same")
	}

	log.Printf("Migrating from %s to %s", opts.fromType, opts.toType)
	log.Printf("Source: %s", maskDSN(opts.fromDSN))
	log.Printf("Target: %s", maskDSN(opts.toDSN))
	log.Printf("Conflict strategy: %s", opts.onConflict)

	// 连接源数据库
	sourceDB, err := openDatabase(opts.fromType, opts.fromDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	sqlDB, _ := sourceDB.DB()
	defer sqlDB.Close()

	// 连接目标数据库
	targetDB, err := openDatabase(opts.toType, opts.toDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to target database: %w", err)
	}
	sqlDB2, _ := targetDB.DB()
	defer sqlDB2.Close()

	// 确认迁移
	if !opts.skipConfirm {
		fmt.Println("\nWarning: This will migrate all data from source to target database.")
		fmt.Printf("Conflict resolution strategy: %s\n", opts.onConflict)
		fmt.Println("Existing data in target database may be affected.")
		fmt.Print("Do you want to continue? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Migration cancelled.")
			return nil
		}
	}

	stats, err := migrateAll(context.Background(), sourceDB, targetDB, opts)

	// 打印统计
	printMigrateStats(stats)

	if err != nil {
		return err
	}
	if len(stats.errors) > 0 {
		return fmt.Errorf("migration completed with %d errors", len(stats.errors))
	}

	log.Println("Migration completed successfully!")
	return nil
}

// migrateAll 迁移表结构与全部数据；父表先于子表
func migrateAll(ctx context.Context, sourceDB, targetDB *gorm.DB, opts migrateOptions) (*migrateStats, error) {
	stats := &migrateStats{}

	// 自动迁移目标数据库结构
	log.Println("Migrating database schema...")
	if err := targetDB.AutoMigrate(models.All()...); err != nil {
		return stats, fmt.Errorf("failed to migrate schema: %w", err)
	}

	steps := []struct {
		name string
		run  func(*tableStats) error
	}{
		{"assets", func(ts *tableStats) error {
			// 内容哈希同样唯一，按 id 或哈希判断冲突
			return migrateTable(ctx, sourceDB, targetDB, ts, opts, func(a *models.Asset) (string, []interface{}) {
				return "id = ? OR content_hash = ?", []interface{}{a.ID, a.ContentHash}
			})
		}},
		{"banners", func(ts *tableStats) error {
			return migrateTable(ctx, sourceDB, targetDB, ts, opts, byID(func(b *models.Banner) uint { return b.ID }))
		}},
		{"banner_images", func(ts *tableStats) error {
			return migrateTable(ctx, sourceDB, targetDB, ts, opts, byID(func(b *models.BannerImage) uint { return b.ID }))
		}},
		{"menu_items", func(ts *tableStats) error {
			return migrateTable(ctx, sourceDB, targetDB, ts, opts, byID(func(m *models.MenuItem) uint { return m.ID }))
		}},
		{"menu_item_images", func(ts *tableStats) error {
			return migrateTable(ctx, sourceDB, targetDB, ts, opts, byID(func(m *models.MenuItemImage) uint { return m.ID }))
		}},
	}

	for _, step := range steps {
		log.Printf("Migrating %s...", step.name)
		ts := &tableStats{table: step.name}
		stats.tables = append(stats.tables, ts)
		if err := step.run(ts); err != nil {
			stats.errors = append(stats.errors, fmt.Sprintf("%s migration failed: %v", step.name, err))
			if opts.onConflict == "error" {
				return stats, err
			}
		}
		log.Printf("Migrated %d %s (skipped: %d, overwritten: %d)", ts.migrated, step.name, ts.skipped, ts.overwritten)
	}

	// 显式写入主键后需要同步 PostgreSQL 自增序列
	if targetDB.Dialector.Name() == "postgres" {
		for _, step := range steps {
			if err := resetSequence(ctx, targetDB, step.name); err != nil {
				stats.errors = append(stats.errors, fmt.Sprintf("failed to reset sequence for %s: %v", step.name, err))
			}
		}
	}

	return stats, nil
}

func byID[T any](id func(*T) uint) func(*T) (string, []interface{}) {
	return func(row *T) (string, []interface{}) {
		return "id = ?", []interface{}{id(row)}
	}
}

// migrateTable 按主键顺序分批复制一张表
func migrateTable[T any](ctx context.Context, sourceDB, targetDB *gorm.DB, ts *tableStats, opts migrateOptions, match func(*T) (string, []interface{})) error {
	var totalCount int64
	if err := sourceDB.WithContext(ctx).Model(new(T)).Count(&totalCount).Error; err != nil {
		return err
	}

	var offset int
	for {
		var rows []*T
		if err := sourceDB.WithContext(ctx).Order("id asc").Limit(opts.batchSize).Offset(offset).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			where, args := match(row)
			if err := copyRow(ctx, targetDB, row, where, args, ts, opts.onConflict); err != nil {
				if errors.Is(err, errConflict) {
					return fmt.Errorf("%w: %s %v", err, ts.table, args)
				}
				log.Printf("failed to migrate %s row %v: %v", ts.table, args, err)
			}
		}

		offset += opts.batchSize
		if offset%1000 == 0 {
			log.Printf("Migrated %d/%d %s...", ts.migrated, totalCount, ts.table)
		}
	}
	return nil
}

// copyRow 按冲突策略写入一行
func copyRow[T any](ctx context.Context, targetDB *gorm.DB, row *T, where string, args []interface{}, ts *tableStats, onConflict string) error {
	var count int64
	if err := targetDB.WithContext(ctx).Model(new(T)).Where(where, args...).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		switch onConflict {
		case "skip":
			ts.skipped++
			return nil
		case "error":
			return errConflict
		}
		// 删除旧记录，插入新记录
		if err := targetDB.WithContext(ctx).Where(where, args...).Delete(new(T)).Error; err != nil {
			return err
		}
		ts.overwritten++
	}

	// 关联表单独迁移
	if err := targetDB.WithContext(ctx).Omit(clause.Associations).Create(row).Error; err != nil {
		return err
	}
	ts.migrated++
	return nil
}

// resetSequence 把自增序列推进到当前最大主键
func resetSequence(ctx context.Context, db *gorm.DB, table string) error {
	return db.WithContext(ctx).Exec(
		fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)", table, table),
	).Error
}

// openDatabase 打开数据库连接
func openDatabase(dbType, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch dbType {
	case "sqlite":
		sqliteDSN := dsn
		if sqliteDSN == "" {
			sqliteDSN = "file::memory:?cache=shared"
		}
		dialector = sqlite.Open(sqliteDSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// maskDSN 隐藏敏感信息
func maskDSN(dsn string) string {
	if len(dsn) > 50 {
		return dsn[:50] + "..."
	}
	return dsn
}

// printMigrateStats 打印迁移统计
func printMigrateStats(stats *migrateStats) {
	fmt.Println()
	fmt.Println("========================================")
	fmt.Println("       Migration Statistics")
	fmt.Println("========================================")
	for _, ts := range stats.tables {
		fmt.Printf("%-18s migrated: %d, skipped: %d, overwritten: %d\n", ts.table+":", ts.migrated, ts.skipped, ts.overwritten)
	}
	fmt.Println("========================================")

	if len(stats.errors) > 0 {
		fmt.Println("\nErrors encountered:")
		for _, err := range stats.errors {
			fmt.Printf("  - %s\n", err)
		}
	}
}
