package asset

import (
	"errors"

	"github.com/anoixa/storefront-assets/database/repo/assets"
	"github.com/anoixa/storefront-assets/internal/worker"
	"github.com/anoixa/storefront-assets/storage"
)

// 调用方只需检查本包的错误类型
var (
	// ErrInvalidInput 负载为空或无法解码
	ErrInvalidInput = errors.New("invalid image payload")
	// ErrNotFound 图片不存在
	ErrNotFound = assets.ErrNotFound
	// ErrAssetInUse 图片链接仍被横幅或菜单项引用
	ErrAssetInUse = errors.New("asset is still referenced")
	// ErrPayloadTooLarge 图片超过大小限制
	ErrPayloadTooLarge = storage.ErrPayloadTooLarge
	// ErrRemoteUnreachable 远程存储不可达，可重试
	ErrRemoteUnreachable = storage.ErrRemoteUnreachable
	// ErrRemoteRejected 远程存储拒绝请求
	ErrRemoteRejected = storage.ErrRemoteRejected
	// ErrPoolSaturated 后台任务池已满
	ErrPoolSaturated = worker.ErrPoolSaturated
)
