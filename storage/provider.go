package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/anoixa/storefront-assets/utils"
	"github.com/anoixa/storefront-assets/utils/format"
)

var (
	// ErrPayloadTooLarge 图片超过远程存储允许的大小，未发起任何网络请求
	ErrPayloadTooLarge = errors.New("payload exceeds the upload size limit")
	// ErrRemoteUnreachable 远程存储不可达（网络错误、超时）
	ErrRemoteUnreachable = errors.New("remote store unreachable")
	// ErrRemoteRejected 远程存储返回了非成功状态
	ErrRemoteRejected = errors.New("remote store rejected the request")
)

// RemoteError 远程存储拒绝请求时的详细信息
type RemoteError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: remote store answered %d: %s", e.Op, e.StatusCode, e.Body)
}

// Unwrap 使 errors.Is(err, ErrRemoteRejected) 成立
func (e *RemoteError) Unwrap() error {
	return ErrRemoteRejected
}

// UploadInput 上传参数
type UploadInput struct {
	// Data 解码后的图片内容
	Data []byte
	// ContentHash 内容哈希，部分存储用作对象名
	ContentHash string
	// MimeType 嗅探出的 MIME 类型
	MimeType string
}

// ObjectKey 以内容哈希作为对象名
func (in *UploadInput) ObjectKey() string {
	return in.ContentHash + extensionFor(in.MimeType)
}

// UploadResult 上传成功后远程存储返回的标识与公开链接
type UploadResult struct {
	RemoteID  string
	PublicURL string
}

// Provider 远程对象存储接口
// 所有实现把失败映射到 ErrPayloadTooLarge / ErrRemoteUnreachable / ErrRemoteRejected
type Provider interface {
	// Upload 上传图片
	Upload(ctx context.Context, in *UploadInput) (*UploadResult, error)

	// Delete 删除远程对象，对象不存在视为成功
	Delete(ctx context.Context, remoteID string) error

	// Health 检查存储健康状态
	Health(ctx context.Context) error

	// Name 返回存储名称
	Name() string
}

// extensionFor 未知类型不带扩展名
func extensionFor(mimeType string) string {
	return utils.GetSafeExtension(mimeType)
}

// tooLarge 超出大小限制的错误
func tooLarge(size int, limit int64) error {
	return fmt.Errorf("%w: %s exceeds the %s limit", ErrPayloadTooLarge,
		format.HumanReadableSize(int64(size)), format.HumanReadableSize(limit))
}

// joinURL 拼接公开链接
func joinURL(base string, elem ...string) string {
	return strings.TrimRight(base, "/") + path.Join(append([]string{"/"}, elem...)...)
}
