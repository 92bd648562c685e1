package database

import (
	"context"

	"gorm.io/gorm"
)

// TxFunc 在事务内执行的函数
type TxFunc func(tx *gorm.DB) error

// Provider 仓库访问数据库的唯一入口，测试时替换为内存 sqlite
type Provider interface {
	DB() *gorm.DB
	WithContext(ctx context.Context) *gorm.DB
	TransactionWithContext(ctx context.Context, fn TxFunc) error
	AutoMigrate(models ...interface{}) error
	Ping() error
	Close() error
	// Name 驱动名称：sqlite 或 postgres
	Name() string
}
