package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/anoixa/storefront-assets/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultSQLitePath = "./data/storefront.db"

// GormProvider GORM 数据库提供者
type GormProvider struct {
	db     *gorm.DB
	dbType string
}

// NewGormProvider 按配置连接 sqlite 或 postgres
func NewGormProvider(cfg *config.Config) (*GormProvider, error) {
	dialector, where, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newGormLogger(),
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		// 唯一约束冲突统一翻译为 gorm.ErrDuplicatedKey，内容哈希去重依赖它
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", where, err)
	}

	if err := tunePool(db, cfg); err != nil {
		return nil, err
	}
	log.Printf("[Database] connected to %s", where)

	return &GormProvider{db: db, dbType: cfg.DBType}, nil
}

// openDialector 返回驱动与用于日志的位置描述（不含密码）
func openDialector(cfg *config.Config) (gorm.Dialector, string, error) {
	switch cfg.DBType {
	case "sqlite", "sqlite3", "":
		path := cfg.DBFilePath
		if path == "" {
			path = defaultSQLitePath
		}
		return sqlite.Open(SQLiteDSN(path)), "sqlite " + path, nil

	case "postgres", "postgresql":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.DBHost, cfg.DBPort, cfg.DBUsername, cfg.DBPassword, cfg.DBName)
		return postgres.Open(dsn), fmt.Sprintf("postgres %s:%d/%s", cfg.DBHost, cfg.DBPort, cfg.DBName), nil

	default:
		return nil, "", fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}
}

// SQLiteDSN 文件库连接串
// WAL 允许读写并发；外键开启后删除横幅或菜单项会级联删除图片列表
// _txlock=immediate 让事务在 BEGIN 时拿写锁，WAL 下延迟事务从读快照升级为写会直接返回 database is locked
func SQLiteDSN(path string) string {
	return fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", path)
}

func newGormLogger() logger.Interface {
	level := logger.Silent
	if config.IsDevelopment() {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  config.IsDevelopment(),
		},
	)
}

func tunePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(positiveOr(cfg.DBMaxOpenConns, 50))
	sqlDB.SetMaxIdleConns(positiveOr(cfg.DBMaxIdleConns, 10))
	sqlDB.SetConnMaxLifetime(time.Duration(positiveOr(cfg.DBConnMaxLifetime, 3600)) * time.Second)
	return nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// NewGormProviderFromDB 包装已打开的 *gorm.DB，测试与迁移命令使用
func NewGormProviderFromDB(db *gorm.DB, dbType string) *GormProvider {
	return &GormProvider{db: db, dbType: dbType}
}

func (p *GormProvider) DB() *gorm.DB {
	return p.db
}

func (p *GormProvider) WithContext(ctx context.Context) *gorm.DB {
	return p.db.WithContext(ctx)
}

func (p *GormProvider) TransactionWithContext(ctx context.Context, fn TxFunc) error {
	return p.db.WithContext(ctx).Transaction(fn)
}

func (p *GormProvider) AutoMigrate(models ...interface{}) error {
	return p.db.AutoMigrate(models...)
}

// Ping 健康检查使用
func (p *GormProvider) Ping() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (p *GormProvider) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	log.Println("[Database] closing connection")
	return sqlDB.Close()
}

// Name 驱动名称，未配置时为 sqlite
func (p *GormProvider) Name() string {
	switch p.dbType {
	case "", "sqlite3":
		return "sqlite"
	case "postgresql":
		return "postgres"
	default:
		return p.dbType
	}
}
