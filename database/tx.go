package database

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// RunInTx 在事务中执行 fn，事务句柄通过 ctx 传递给仓库层
// 已处于事务中时直接复用外层事务
func RunInTx(ctx context.Context, p Provider, fn func(txCtx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return p.TransactionWithContext(ctx, func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Conn 返回 ctx 中的事务句柄，不存在时返回 provider 的普通连接
func Conn(ctx context.Context, p Provider) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return p.WithContext(ctx)
}
