package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"strings"
	"time"

	"github.com/studio-b12/gowebdav"
)

// WebDAVConfig WebDAV 配置结构
type WebDAVConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	RootPath string `mapstructure:"root"`
	// PublicBaseURL 对外访问前缀，为空时使用 URL
	PublicBaseURL  string `mapstructure:"public_base_url"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// davClient gowebdav 客户端中用到的方法，测试时可替换
type davClient interface {
	ReadDir(path string) ([]os.FileInfo, error)
	Mkdir(path string, mode os.FileMode) error
	Write(path string, data []byte, mode os.FileMode) error
	Remove(path string) error
}

// WebDAVStorage WebDAV 存储实现
type WebDAVStorage struct {
	client         davClient
	rootPath       string
	publicBaseURL  string
	maxUploadBytes int64
}

// NewWebDAVStorage 创建 WebDAV 存储提供者
func NewWebDAVStorage(cfg WebDAVConfig) (*WebDAVStorage, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webdav URL is required")
	}

	client := gowebdav.NewClient(cfg.URL, cfg.Username, cfg.Password)
	s := newWebDAVStorage(client, cfg)

	// 验证连接
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Health(ctx); err != nil {
		return nil, fmt.Errorf("webdav connection test failed: %w", err)
	}
	return s, nil
}

func newWebDAVStorage(client davClient, cfg WebDAVConfig) *WebDAVStorage {
	rootPath := strings.Trim(cfg.RootPath, "/")
	if rootPath != "" {
		rootPath = "/" + rootPath
	}
	publicBaseURL := cfg.PublicBaseURL
	if publicBaseURL == "" {
		publicBaseURL = cfg.URL
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &WebDAVStorage{
		client:         client,
		rootPath:       rootPath,
		publicBaseURL:  strings.TrimRight(publicBaseURL, "/"),
		maxUploadBytes: maxUpload,
	}
}

// fullPath 生成完整的 WebDAV 路径
func (s *WebDAVStorage) fullPath(storagePath string) string {
	storagePath = strings.TrimLeft(storagePath, "/")
	if s.rootPath != "" {
		return s.rootPath + "/" + storagePath
	}
	return "/" + storagePath
}

// ensureDir 逐级创建目录
func (s *WebDAVStorage) ensureDir(ctx context.Context, dir string) error {
	if dir == "/" || dir == "." || dir == "" {
		return nil
	}

	currentPath := ""
	for _, part := range strings.Split(strings.Trim(dir, "/"), "/") {
		if part == "" {
			continue
		}
		currentPath = currentPath + "/" + part
		p := currentPath
		err := s.do(ctx, func() error { return s.client.Mkdir(p, 0755) })
		if err != nil && !isCollectionExistsError(err) {
			return fmt.Errorf("failed to create directory %s: %w", currentPath, err)
		}
	}
	return nil
}

// isCollectionExistsError 判断是否为目录已存在的错误
func isCollectionExistsError(err error) bool {
	errStr := err.Error()
	for _, s := range []string{"already exists", "onflict", "409", "Method Not Allowed", "405"} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}

// do gowebdav 不支持 context，在独立协程中执行并等待
func (s *WebDAVStorage) do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Upload 写入文件，路径为 <root>/<hash><ext>
func (s *WebDAVStorage) Upload(ctx context.Context, in *UploadInput) (*UploadResult, error) {
	if int64(len(in.Data)) > s.maxUploadBytes {
		return nil, tooLarge(len(in.Data), s.maxUploadBytes)
	}

	key := in.ObjectKey()
	fullPath := s.fullPath(key)
	if err := s.ensureDir(ctx, path.Dir(fullPath)); err != nil {
		return nil, s.translate("upload", err)
	}

	if err := s.do(ctx, func() error { return s.client.Write(fullPath, in.Data, 0644) }); err != nil {
		return nil, s.translate("upload", err)
	}

	return &UploadResult{
		RemoteID:  key,
		PublicURL: s.publicBaseURL + fullPath,
	}, nil
}

// Delete 删除文件，文件不存在视为成功
func (s *WebDAVStorage) Delete(ctx context.Context, remoteID string) error {
	fullPath := s.fullPath(remoteID)
	err := s.do(ctx, func() error { return s.client.Remove(fullPath) })
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return nil
		}
		return s.translate("delete", err)
	}
	return nil
}

// Health 检查存储健康状态
func (s *WebDAVStorage) Health(ctx context.Context) error {
	root := s.rootPath
	if root == "" {
		root = "/"
	}
	return s.do(ctx, func() error {
		_, err := s.client.ReadDir(root)
		return err
	})
}

// Name 返回存储名称
func (s *WebDAVStorage) Name() string {
	return "webdav"
}

// translate 把 gowebdav 错误映射为统一的错误类型
func (s *WebDAVStorage) translate(op string, err error) error {
	var statusErr gowebdav.StatusError
	if errors.As(err, &statusErr) {
		return &RemoteError{Op: op, StatusCode: statusErr.Status, Body: statusErr.Error()}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", ErrRemoteUnreachable, op, err)
	}
	return &RemoteError{Op: op, Body: err.Error()}
}
