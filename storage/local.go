package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string `mapstructure:"path"`
	// PublicBaseURL 对外访问前缀，如 http://host:8080/uploads
	PublicBaseURL  string `mapstructure:"public_base_url"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// LocalStorage 本地文件存储实现，开发环境使用
type LocalStorage struct {
	absBasePath    string
	publicBaseURL  string
	maxUploadBytes int64
}

// NewLocalStorage 创建本地存储提供者
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for '%s': %w", cfg.Path, err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory '%s': %w", absPath, err)
	}

	testFile := filepath.Join(absPath, ".write_test_"+strconv.FormatInt(time.Now().UnixNano(), 10))
	f, err := os.Create(testFile)
	if err != nil {
		return nil, fmt.Errorf("local storage directory '%s' is not writable: %w", absPath, err)
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}

	return &LocalStorage{
		absBasePath:    absPath + string(os.PathSeparator),
		publicBaseURL:  strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxUploadBytes: maxUpload,
	}, nil
}

// Upload 写入文件
func (s *LocalStorage) Upload(ctx context.Context, in *UploadInput) (*UploadResult, error) {
	if int64(len(in.Data)) > s.maxUploadBytes {
		return nil, tooLarge(len(in.Data), s.maxUploadBytes)
	}

	key := in.ObjectKey()
	dstPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 先写临时文件再重命名，避免读到半个文件
	tmp := dstPath + ".tmp"
	if err := os.WriteFile(tmp, in.Data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write file '%s': %w", key, err)
	}
	if err := os.Rename(tmp, dstPath); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("failed to move file '%s' into place: %w", key, err)
	}

	return &UploadResult{
		RemoteID:  key,
		PublicURL: joinURL(s.publicBaseURL, key),
	}, nil
}

// Delete 删除文件，文件不存在视为成功
func (s *LocalStorage) Delete(ctx context.Context, remoteID string) error {
	fullPath, err := s.resolve(remoteID)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete local file '%s': %w", remoteID, err)
	}
	return nil
}

// Health 检查存储健康状态
func (s *LocalStorage) Health(ctx context.Context) error {
	_, err := os.ReadDir(s.absBasePath)
	return err
}

// Name 返回存储名称
func (s *LocalStorage) Name() string {
	return "local"
}

// BasePath 返回存储的基础路径，路由层用于挂载静态目录
func (s *LocalStorage) BasePath() string {
	return s.absBasePath
}

// resolve 校验对象名并返回绝对路径
func (s *LocalStorage) resolve(key string) (string, error) {
	if !IsValidStoragePath(key) {
		return "", fmt.Errorf("invalid storage path: %s", key)
	}
	fullPath := filepath.Join(s.absBasePath, key)
	// 防止目录遍历攻击
	if !strings.HasPrefix(fullPath, s.absBasePath) {
		return "", fmt.Errorf("invalid file path, potential directory traversal: %s", key)
	}
	return fullPath, nil
}

// IsValidStoragePath 校验存储路径是否合法
func IsValidStoragePath(path string) bool {
	if path == "" {
		return false
	}

	// 不允许绝对路径
	if filepath.IsAbs(path) {
		return false
	}

	// 防止目录遍历
	if strings.Contains(path, "..") {
		return false
	}

	// 只允许安全字符
	for _, r := range path {
		if (r < 'a' || r > 'z') &&
			(r < 'A' || r > 'Z') &&
			(r < '0' || r > '9') &&
			r != '-' && r != '_' && r != '.' && r != '/' {
			return false
		}
	}

	return true
}
